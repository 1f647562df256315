// Package hook generates human-readable routing aliases. The alias becomes
// the local part of the address inbound webhook traffic is delivered to,
// e.g. brave_otter@pfg.app.
package hook

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generate returns a random adjective_animal alias. Uniqueness is NOT
// guaranteed here; the users.hook unique constraint is, and callers retry
// with a fresh alias on collision.
func Generate() string {
	return pick(adjectives) + "_" + pick(animals)
}

// Email builds the full inbound address for an alias on the given domain.
func Email(alias, domain string) string {
	return fmt.Sprintf("%s@%s", alias, domain)
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// nothing sensible to do but give a fixed word.
		return words[0]
	}
	return words[n.Int64()]
}
