package utils

import "strings"

// DigitsOnly strips every non-digit rune from a phone number.
func DigitsOnly(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// SanitizePhone normalizes the phone in place.
func SanitizePhone(phone *string) {
	if phone == nil {
		return
	}
	*phone = DigitsOnly(*phone)
}
