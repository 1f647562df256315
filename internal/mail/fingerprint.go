package mail

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// ContentHash computes the deduplication fingerprint over the sanitized
// content and the raw recipient address.
//
// The encoding is a fixed-shape record: each field is written length-prefixed
// in a fixed order, so the hash is order-sensitive over the record shape and
// cannot collide across field boundaries ("ab","c" vs "a","bc"). Delivery
// time and transport metadata are deliberately excluded — provider retries of
// the same logical event must collapse to the same fingerprint. This is an
// idempotency key, not a security property.
func ContentHash(subject, text, html, to string) string {
	h := sha256.New()
	for _, field := range []string{subject, text, html, to} {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(field)))
		h.Write(length[:])
		io.WriteString(h, field)
	}
	return hex.EncodeToString(h.Sum(nil))
}
