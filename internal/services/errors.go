package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError is returned when input fails validation. Fields maps the
// JSON field name to a human readable message.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func newValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Message: "validation failed", Fields: fields}
}

// ConflictError is returned when an operation would break a uniqueness or state rule
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthError is returned when credentials or the session are not acceptable
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// ForbiddenError is returned when the actor may not act on the resource
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NotFoundError is returned when the referenced entity does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// ExpiredError is returned when a gate pass is past its validity window
type ExpiredError struct {
	Message   string
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string { return e.Message }

// GenerationError is returned when gate pass or share message generation fails
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// DeliveryError is returned when a transport fails to hand off a share message
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver message via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}
