// Package notify delivers gate pass share messages to guests over SMS or email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Delivery methods
const (
	MethodEmail = "email"
	MethodSMS   = "sms"
)

// ErrUnsupportedMethod is returned when no transport handles the requested method
var ErrUnsupportedMethod = errors.New("unsupported delivery method")

// Delivery is a single outbound message
type Delivery struct {
	Method      string
	ContactInfo string
	Message     string
}

// Transport sends a message and returns the provider's message ID, if any
type Transport interface {
	Send(ctx context.Context, d Delivery) (string, error)
	Name() string
}

// Router dispatches deliveries to the transport registered for their method
type Router struct {
	transports map[string]Transport
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{transports: make(map[string]Transport)}
}

// Handle registers t for method, replacing any previous transport
func (r *Router) Handle(method string, t Transport) *Router {
	r.transports[method] = t
	return r
}

// Send routes d to the transport for d.Method
func (r *Router) Send(ctx context.Context, d Delivery) (string, error) {
	t, ok := r.transports[d.Method]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, d.Method)
	}
	return t.Send(ctx, d)
}

// Channel returns the name of the transport registered for method, or ""
func (r *Router) Channel(method string) string {
	if t, ok := r.transports[method]; ok {
		return t.Name()
	}
	return ""
}

// Name lists the registered transports, e.g. "email:sendgrid,sms:twilio"
func (r *Router) Name() string {
	parts := make([]string, 0, len(r.transports))
	for _, method := range []string{MethodEmail, MethodSMS} {
		if t, ok := r.transports[method]; ok {
			parts = append(parts, method+":"+t.Name())
		}
	}
	return strings.Join(parts, ",")
}

// splitSubject separates a leading "Subject: ..." line from the body
func splitSubject(message, fallback string) (subject, body string) {
	first, rest, found := strings.Cut(message, "\n")
	if strings.HasPrefix(strings.ToLower(first), "subject:") {
		subject = strings.TrimSpace(first[len("subject:"):])
		if !found {
			rest = ""
		}
		return subject, strings.TrimLeft(rest, "\r\n")
	}
	return fallback, message
}
