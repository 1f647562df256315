package mail

import "strings"

// HookFromAddress extracts the routing alias from an envelope recipient
// address of the form `<alias>@<domain>`. An address without an '@' is
// returned whole; ownership of the alias is checked against the store by
// the caller.
func HookFromAddress(to string) string {
	alias, _, _ := strings.Cut(to, "@")
	return alias
}
