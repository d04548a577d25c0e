package identity

import (
	"regexp"
	"strings"
)

// emailRe matches a standard address grammar: local part, "@", dotted domain
// with an alphabetic TLD of at least two characters.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether s (already normalized) is a well-formed address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}
