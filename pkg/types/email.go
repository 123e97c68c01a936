package types

import (
	"regexp"
	"strings"
)

// EmailPattern matches a whole token of the form local@domain.tld
var EmailPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._%+\-]*@[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// IsEmail reports whether s is an email address (case-insensitive)
func IsEmail(s string) bool {
	return EmailPattern.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EmailLocalPart returns the part of an email before the @
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
