package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and an optional leading +")

	// ErrInvalidLength indicates the number has too few or too many digits for E.164
	ErrInvalidLength = errors.New("phone number must have between 8 and 15 digits")

	// ErrMissingCountryCode indicates the number is not in international form
	ErrMissingCountryCode = errors.New("phone number must include the country code, e.g. +919876543210")
)

var digitsRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator validates phone numbers in E.164 international form
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a phone number and returns it in E.164 form (+<digits>).
// Accepts separators such as spaces, dashes, dots and parentheses, and a 00 international prefix.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	var digits string
	switch {
	case strings.HasPrefix(sanitized, "+"):
		digits = sanitized[1:]
	case strings.HasPrefix(sanitized, "00"):
		digits = sanitized[2:]
	default:
		if !digitsRegex.MatchString(sanitized) {
			return "", ErrInvalidFormat
		}
		return "", ErrMissingCountryCode
	}

	if !digitsRegex.MatchString(digits) {
		return "", ErrInvalidFormat
	}

	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidLength
	}

	// country codes never start with 0
	if digits[0] == '0' {
		return "", ErrMissingCountryCode
	}

	return "+" + digits, nil
}

// Sanitize removes common separators from a phone number
func (v *PhoneValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	return replacer.Replace(strings.TrimSpace(phone))
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}

// Mask hides all but the last four digits, for logs
func Mask(contact string) string {
	if at := strings.IndexByte(contact, '@'); at > 0 {
		return contact[:1] + "***" + contact[at:]
	}
	if len(contact) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(contact)-4) + contact[len(contact)-4:]
}
