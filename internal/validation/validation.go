// Package validation provides input validation for quote wizard fields.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

// Validation error types for specific error handling.
var (
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrTooLong       = errors.New("value exceeds maximum length")
	ErrInvalidFormat = errors.New("invalid format")
)

// Constraints for validation.
const (
	MaxNameLength  = 255
	MaxEmailLength = 254
	MaxPhoneLength = 32
	MaxURLLength   = 2048
	MaxTextLength  = 4000
)

// phonePattern accepts an optional leading +, digits and common separators,
// with at least 6 digits overall.
var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{6,}$`)

// FieldError describes why a single named field was rejected.
type FieldError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, truncate(e.Value, 50), e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Required checks that value is non-empty after trimming and within max bytes.
func Required(field, value string, max int) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return &FieldError{Field: field, Reason: "cannot be empty", Err: ErrEmptyValue}
	}
	if max > 0 && len(v) > max {
		return &FieldError{
			Field:  field,
			Value:  v,
			Reason: fmt.Sprintf("exceeds maximum length of %d characters", max),
			Err:    ErrTooLong,
		}
	}
	return nil
}

// ValidateName validates a person or company name.
func ValidateName(name string) error {
	return Required("name", name, MaxNameLength)
}

// ValidateEmail checks presence and, when strict, RFC 5322 address syntax.
func ValidateEmail(email string, strict bool) error {
	if err := Required("email", email, MaxEmailLength); err != nil {
		return err
	}
	if !strict {
		return nil
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) || !strings.Contains(addr.Address, "@") {
		return &FieldError{Field: "email", Value: email, Reason: "must be a plain address like name@example.com", Err: ErrInvalidFormat}
	}
	return nil
}

// ValidatePhone checks presence and, when strict, a plausible phone number.
func ValidatePhone(phone string, strict bool) error {
	if err := Required("phone", phone, MaxPhoneLength); err != nil {
		return err
	}
	if strict && !phonePattern.MatchString(strings.TrimSpace(phone)) {
		return &FieldError{Field: "phone", Value: phone, Reason: "must contain digits and separators only", Err: ErrInvalidFormat}
	}
	return nil
}

// ValidateOptionalURL accepts an empty value or an absolute http(s) URL.
// Bare hosts such as "example.com" are accepted by prefixing https://.
func ValidateOptionalURL(field, raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	if len(v) > MaxURLLength {
		return &FieldError{Field: field, Value: v, Reason: fmt.Sprintf("exceeds maximum length of %d characters", MaxURLLength), Err: ErrTooLong}
	}
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || strings.ContainsAny(u.Host, " ") {
		return &FieldError{Field: field, Value: raw, Reason: "must be an http or https URL", Err: ErrInvalidFormat}
	}
	return nil
}

// ValidateText bounds a free-text field. Empty is allowed.
func ValidateText(field, value string) error {
	if len(value) > MaxTextLength {
		return &FieldError{Field: field, Value: value, Reason: fmt.Sprintf("exceeds maximum length of %d characters", MaxTextLength), Err: ErrTooLong}
	}
	return nil
}

// truncate shortens a string for display in error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
