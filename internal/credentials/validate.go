package credentials

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 7
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
	forbiddenWord    = "password"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "name is required"
	}
	return ""
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "email is invalid"
	}
	return ""
}

func validateAge(age int) string {
	if age < 0 {
		return "age must be a positive number"
	}
	return ""
}

func validatePassword(password string) string {
	trimmed := strings.TrimSpace(password)
	switch {
	case !utf8.ValidString(password):
		return "password must be valid UTF-8"
	case utf8.RuneCountInString(trimmed) < minPasswordLength:
		return "password must be at least 7 characters"
	case len(trimmed) > maxPasswordBytes:
		return "password is too long"
	case strings.Contains(strings.ToLower(trimmed), forbiddenWord):
		return `password cannot contain "password"`
	}
	return ""
}
