// Package gatepass produces gate pass content and share messages for pre-approved guests.
//
// Two implementations are provided: OpenAIClient, which asks a chat model for
// structured output through a forced tool call, and LocalGenerator, which works
// offline from templates. Callers must treat generator output as untrusted and
// sanitize it before showing it to anyone.
package gatepass

import (
	"context"
	"regexp"
	"time"
)

// CodeLength is the length of a gate pass code
const CodeLength = 8

var codeRegex = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

// ValidCode reports whether code is exactly eight ASCII letters or digits
func ValidCode(code string) bool {
	return codeRegex.MatchString(code)
}

// PassRequest is the input for generating a gate pass
type PassRequest struct {
	GuestName  string
	Purpose    string
	FlatNumber string
}

// PassContent is the raw generator output
type PassContent struct {
	DisplayInfo  []string `json:"displayInfo"`
	QRData       string   `json:"qrData"`
	Instructions string   `json:"instructions"`
}

// ShareRequest is the input for composing a share message
type ShareRequest struct {
	VisitorName  string
	FlatNumber   string
	QRData       string
	Instructions string
	ValidUntil   time.Time
	Method       string // "email" or "sms"
}

// Generator produces gate pass content
type Generator interface {
	GeneratePass(ctx context.Context, req PassRequest) (*PassContent, error)
}

// Formatter composes the message a resident sends to their guest
type Formatter interface {
	FormatShareMessage(ctx context.Context, req ShareRequest) (string, error)
}

// Client is both a Generator and a Formatter
type Client interface {
	Generator
	Formatter
	Name() string
}
