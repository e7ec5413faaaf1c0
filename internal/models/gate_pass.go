package models

import (
	"time"
)

// GatePass is the guest-facing pass returned by a pre-approval.
// It is never stored; the visit carries the code and expiry.
type GatePass struct {
	VisitID      string    `json:"visit_id"`
	VisitorName  string    `json:"visitor_name"`
	FlatNumber   string    `json:"flat_number"`
	DisplayInfo  []string  `json:"display_info"`
	QRData       string    `json:"qr_data"`
	Instructions string    `json:"instructions"`
	ValidUntil   time.Time `json:"valid_until"`
}

// ShareMethod is the channel a gate pass is shared over
type ShareMethod string

const (
	ShareEmail ShareMethod = "email"
	ShareSMS   ShareMethod = "sms"
)

// PreApproveRequest represents a resident pre-approving a guest
type PreApproveRequest struct {
	GuestName string `json:"guest_name" validate:"required"`
	Purpose   string `json:"purpose" validate:"required"`
}

// ShareRequest represents a resident sharing a gate pass with a guest.
// Contact info is checked against the method by the service.
type ShareRequest struct {
	QRData       string `json:"qr_data" validate:"required"`
	Instructions string `json:"instructions"`
	Method       string `json:"method" validate:"required,oneof=email sms"`
	ContactInfo  string `json:"contact_info" validate:"required"`
}

// ShareResult is returned after a share message was generated and handed to a transport
type ShareResult struct {
	Message   string `json:"message"`
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	MessageID string `json:"message_id,omitempty"`
}
