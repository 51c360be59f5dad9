// Package validation contains input validation helpers.
package validation

import (
	"strings"
	"unicode"
)

// NormalizePhone strips all non-digit characters and keeps the last ten
// digits, the form phone numbers are matched by.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, ch := range phone {
		if unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}

	digits := b.String()
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// IsValidEmail performs a minimal structural check on an email address.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.Contains(domain, "@") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// TrimDateOnly cuts a timestamp down to its date part, accepting either a
// plain date or an ISO timestamp.
func TrimDateOnly(value string) string {
	if i := strings.Index(value, "T"); i >= 0 {
		return value[:i]
	}
	return value
}
