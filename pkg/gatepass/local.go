package gatepass

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LocalGenerator builds passes and messages without any network calls.
// It is used when no model API key is configured.
type LocalGenerator struct {
	OrganizationName string
}

// NewLocalGenerator creates a template-based generator
func NewLocalGenerator(organizationName string) *LocalGenerator {
	if organizationName == "" {
		organizationName = "the society"
	}
	return &LocalGenerator{OrganizationName: organizationName}
}

// Name identifies the generator in logs and metrics
func (g *LocalGenerator) Name() string {
	return "local"
}

// GeneratePass returns a pass with a random code. The purpose is not used.
func (g *LocalGenerator) GeneratePass(ctx context.Context, req PassRequest) (*PassContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	code, err := RandomCode()
	if err != nil {
		return nil, err
	}

	return &PassContent{
		DisplayInfo: []string{
			"Guest: " + req.GuestName,
			"Flat: " + req.FlatNumber,
		},
		QRData: code,
		Instructions: fmt.Sprintf(
			"Show this pass and code %s to the security guard at the main gate of %s.", code, g.OrganizationName),
	}, nil
}

// FormatShareMessage renders the share message for the given channel
func (g *LocalGenerator) FormatShareMessage(ctx context.Context, req ShareRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	validUntil := req.ValidUntil.Format(time.RFC1123)

	if req.Method == "email" {
		var b strings.Builder
		fmt.Fprintf(&b, "Subject: Your gate pass for %s, Flat %s\n\n", g.OrganizationName, req.FlatNumber)
		fmt.Fprintf(&b, "Dear %s,\n\n", req.VisitorName)
		fmt.Fprintf(&b, "You have been pre-approved to visit Flat %s. Please show the code below at the gate.\n\n", req.FlatNumber)
		fmt.Fprintf(&b, "Gate pass code: %s\n", req.QRData)
		fmt.Fprintf(&b, "Valid until: %s\n", validUntil)
		if req.Instructions != "" {
			fmt.Fprintf(&b, "\n%s\n", req.Instructions)
		}
		b.WriteString("\nWe look forward to your visit.\n")
		return b.String(), nil
	}

	return fmt.Sprintf("Hi %s, your gate pass for Flat %s: code %s, valid until %s.",
		req.VisitorName, req.FlatNumber, req.QRData, validUntil), nil
}

// RandomCode returns an 8-character code drawn from A-Z and 0-9 with crypto/rand
func RandomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
