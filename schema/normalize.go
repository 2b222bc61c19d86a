package schema

import (
	"path"
	"regexp"
	"strings"
)

// ValidateUserID ensures a user id matches [a-z0-9._-] with no normalization.
func ValidateUserID(userID UserID) error {
	raw := string(userID)
	if raw == "" {
		return ErrInvalidUser
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidUser
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidUser
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail checks the address shape accepted by the auth forms.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword applies the registration password rules.
func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len([]rune(password)) < 6 {
		return ErrPasswordTooShort
	}
	return nil
}

// NormalizeTabPath cleans a route path. The query string is kept, the
// fragment dropped. Only absolute routes are accepted.
func NormalizeTabPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if i := strings.IndexByte(trimmed, '#'); i >= 0 {
		trimmed = trimmed[:i]
	}
	query := ""
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		query = trimmed[i:]
		trimmed = trimmed[:i]
	}
	if !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(trimmed)
	if query == "?" {
		query = ""
	}
	return cleaned + query, nil
}
