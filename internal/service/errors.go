package service

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Errors returned by the services. Handlers map them to HTTP status codes
// with errors.Is; the wrapped text is safe to show to clients.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
)

var (
	errInvalidSecretKey = fmt.Errorf("%w: invalid secret key", ErrInvalidCredential)
	errInvalidToken     = fmt.Errorf("%w: invalid or expired token", ErrInvalidCredential)
)

// Input limits.
const (
	MaxEmailLength = 120
	MaxTextLength  = 500
	MaxNameLength  = 120
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("%w: email exceeds %d characters", ErrValidation, MaxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: malformed email %q", ErrValidation, email)
	}
	return nil
}

func validateText(text string) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return fmt.Errorf("%w: text is required", ErrValidation)
	}
	if n > MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d characters", ErrValidation, MaxTextLength)
	}
	return nil
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, MaxNameLength)
	}
	return nil
}

func permissionDenied(email, messageID string) error {
	return fmt.Errorf("%w: %s may not access message %s", ErrPermissionDenied, email, messageID)
}

func messageNotFound(messageID string) error {
	return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
}
