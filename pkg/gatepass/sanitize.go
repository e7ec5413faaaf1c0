package gatepass

import (
	"strings"
	"time"
)

// DefaultInstructions replaces generated instructions that cannot be shown to the guest
const DefaultInstructions = "Please show this gate pass to the security guard at the main gate."

// fallbackInstructions are tried in order when DefaultInstructions itself
// mentions the purpose
var fallbackInstructions = []string{
	DefaultInstructions,
	"Present this code to security on arrival.",
	"Hand this pass to the guard at the entrance.",
}

var (
	guestLabels = []string{"Guest", "Visitor", "Name"}
	flatLabels  = []string{"Flat", "Unit", "Apartment"}
	untilLabels = []string{"Valid Until", "Expires", "Good Till"}
	dateLayouts = []string{time.RFC1123, "2006-01-02 15:04 MST", "02/01/2006 15:04 MST"}
)

var reservedLabels = func() []string {
	var labels []string
	for _, group := range [][]string{guestLabels, flatLabels, untilLabels} {
		for _, l := range group {
			labels = append(labels, strings.ToLower(l)+":")
		}
	}
	return labels
}()

// Sanitize turns untrusted generator output into guest-facing content.
//
// Display lines mentioning the purpose (case-insensitive) are dropped, and
// instructions mentioning it are replaced with DefaultInstructions or a
// neutral alternative. The result starts with the guest name and flat number
// and ends with the expiry. Each canonical line uses the first label and date
// layout that does not spell out the purpose; a value line falls back to the
// bare value, and the expiry line is left out if every layout matches.
//
// The guest name and flat number come from req unchanged, so a purpose that is
// part of either still appears there. Instructions become empty if every
// alternative mentions the purpose.
func Sanitize(content PassContent, req PassRequest, validUntil time.Time) PassContent {
	purpose := strings.ToLower(strings.TrimSpace(req.Purpose))
	mentionsPurpose := func(s string) bool {
		return purpose != "" && strings.Contains(strings.ToLower(s), purpose)
	}

	var lines []string
	for _, field := range []struct {
		labels []string
		value  string
	}{
		{guestLabels, req.GuestName},
		{flatLabels, req.FlatNumber},
	} {
		lines = append(lines, labelledLine(field.labels, field.value, mentionsPurpose))
	}

	for _, line := range content.DisplayInfo {
		line = strings.TrimSpace(line)
		if line == "" || mentionsPurpose(line) || hasReservedLabel(line) {
			continue
		}
		lines = append(lines, line)
	}

	if line, ok := expiryLine(validUntil.UTC(), mentionsPurpose); ok {
		lines = append(lines, line)
	}

	instructions := strings.TrimSpace(content.Instructions)
	if instructions == "" || mentionsPurpose(instructions) {
		instructions = ""
		for _, candidate := range fallbackInstructions {
			if !mentionsPurpose(candidate) {
				instructions = candidate
				break
			}
		}
	}

	return PassContent{
		DisplayInfo:  lines,
		QRData:       strings.TrimSpace(content.QRData),
		Instructions: instructions,
	}
}

func labelledLine(labels []string, value string, mentionsPurpose func(string) bool) string {
	for _, label := range labels {
		if line := label + ": " + value; !mentionsPurpose(line) {
			return line
		}
	}
	if !mentionsPurpose(value) {
		return value
	}
	// the value itself carries the purpose
	return labels[0] + ": " + value
}

func expiryLine(validUntil time.Time, mentionsPurpose func(string) bool) (string, bool) {
	for _, layout := range dateLayouts {
		for _, label := range untilLabels {
			if line := label + ": " + validUntil.Format(layout); !mentionsPurpose(line) {
				return line, true
			}
		}
	}
	return "", false
}

func hasReservedLabel(line string) bool {
	lower := strings.ToLower(line)
	for _, label := range reservedLabels {
		if strings.HasPrefix(lower, label) {
			return true
		}
	}
	return false
}
