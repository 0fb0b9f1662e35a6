package account

import (
	"regexp"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,}$`)
)

const (
	MsgInvalidLoginIdentifier = "Please enter a valid email address."
	MsgFieldsRequired         = "All fields are required"
	MsgInvalidEmail           = "Please enter a valid email address"
	MsgInvalidUsername        = "Username must be at least 3 characters and contain only letters, numbers, and underscores"
)

// ValidationError is an input problem caught before any storage access.
// Message is shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "account: invalid " + e.Field + ": " + e.Message
}

func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func IsUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// ValidateLoginIdentifier accepts either an email address or a username.
func ValidateLoginIdentifier(identifier string) error {
	if IsEmail(identifier) || IsUsername(identifier) {
		return nil
	}
	return &ValidationError{Field: "username", Message: MsgInvalidLoginIdentifier}
}

func ValidateSignup(username, email, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" {
		return &ValidationError{Field: "form", Message: MsgFieldsRequired}
	}
	if !IsEmail(email) {
		return &ValidationError{Field: "email", Message: MsgInvalidEmail}
	}
	if !IsUsername(username) {
		return &ValidationError{Field: "username", Message: MsgInvalidUsername}
	}
	return nil
}
