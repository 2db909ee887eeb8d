package normalize

import "strings"

// ID returns the canonical form of a roster identifier (student number,
// counselor or advisor code) used for storage and comparisons: surrounding
// whitespace trimmed and letters upper-cased, so "t001 " and "T001" address
// the same account.
func ID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
