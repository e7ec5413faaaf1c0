package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidNumbers(t *testing.T) {
	v := NewPhoneValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"+919876543210", "+919876543210", "E.164"},
		{"+91 98765 43210", "+919876543210", "With spaces"},
		{"+1 (415) 555-0100", "+14155550100", "With parentheses and dashes"},
		{"0044 20 7946 0958", "+442079460958", "00 international prefix"},
		{"+94.77.123.4567", "+94771234567", "With dots"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := v.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, normalized)
			assert.True(t, v.IsValid(tc.input))
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	v := NewPhoneValidator()

	invalidNumbers := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyPhone, "Empty string"},
		{"   ", ErrEmptyPhone, "Whitespace"},
		{"9876543210", ErrMissingCountryCode, "National number"},
		{"+0123456789", ErrMissingCountryCode, "Leading zero country code"},
		{"+1234", ErrInvalidLength, "Too short"},
		{"+1234567890123456", ErrInvalidLength, "Too long"},
		{"+91987654321a", ErrInvalidFormat, "Contains letters"},
		{"call me", ErrInvalidFormat, "Text"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(tc.input)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.False(t, v.IsValid(tc.input))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "j***@example.com", Mask("john@example.com"))
	assert.Equal(t, "*********3210", Mask("+919876543210"))
	assert.Equal(t, "****", Mask("123"))
}

type registerPayload struct {
	Name   string `json:"name" validate:"required,min=3"`
	Email  string `json:"email" validate:"required,email"`
	Mobile string `json:"mobile" validate:"omitempty,e164"`
	Role   string `json:"role" validate:"required,oneof=owner tenant"`
}

func TestStruct(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		fields := Struct(registerPayload{Name: "John Doe", Email: "john@example.com", Role: "owner"})
		assert.Nil(t, fields)
	})

	t.Run("Reports every failing field by json name", func(t *testing.T) {
		fields := Struct(registerPayload{Name: "Jo", Email: "not-an-email", Mobile: "12345", Role: "landlord"})
		require.Len(t, fields, 4)
		assert.Equal(t, "must be at least 3 characters", fields["name"])
		assert.Equal(t, "must be a valid email address", fields["email"])
		assert.Contains(t, fields["mobile"], "international format")
		assert.Equal(t, "must be one of: owner, tenant", fields["role"])
	})

	t.Run("Required", func(t *testing.T) {
		fields := Struct(registerPayload{})
		assert.Equal(t, "is required", fields["name"])
		assert.Equal(t, "is required", fields["email"])
		assert.NotContains(t, fields, "mobile")
	})
}

func TestEmailHelpers(t *testing.T) {
	assert.True(t, IsEmail("guest@example.com"))
	assert.False(t, IsEmail("Guest <guest@example.com>"))
	assert.False(t, IsEmail("guest"))
	assert.Equal(t, "guest@example.com", NormalizeEmail("  Guest@Example.COM "))
}
