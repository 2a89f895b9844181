package core

import "strings"

// NormalizePhone reduces a phone number to a canonical local form so the
// same customer matches across leads regardless of how the number was
// typed. Non-digits are stripped, a 972 country prefix becomes a local
// leading zero, and a bare 9-digit number gets a zero prepended.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "972"):
		return "0" + digits[3:]
	case len(digits) == 9 && !strings.HasPrefix(digits, "0"):
		return "0" + digits
	default:
		return digits
	}
}
