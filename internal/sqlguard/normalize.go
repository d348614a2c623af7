package sqlguard

import "strings"

// Normalize produces the canonical form used for oscillation detection
// and consistency scoring: whitespace runs collapsed to single spaces,
// leading and trailing whitespace removed, and everything uppercased.
// Two candidates with the same normalized form are the same attempt.
func Normalize(sql string) string {
	return strings.ToUpper(strings.Join(strings.Fields(sql), " "))
}
