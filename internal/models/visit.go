package models

import (
	"time"
)

// VisitorType classifies a visitor
type VisitorType string

const (
	VisitorGuest    VisitorType = "Guest"
	VisitorDelivery VisitorType = "Delivery"
	VisitorOther    VisitorType = "Other"
)

// VisitStatus tracks where a visitor is in the gate lifecycle
type VisitStatus string

const (
	VisitStatusInside      VisitStatus = "Inside"
	VisitStatusExited      VisitStatus = "Exited"
	VisitStatusPreApproved VisitStatus = "Pre-Approved"
)

// GatePassValidity is how long a pre-approval gate pass stays valid after it is issued
const GatePassValidity = 12 * time.Hour

// Visit represents a single visitor entry, walk-in or pre-approved
type Visit struct {
	ID                string      `json:"id" db:"id"`
	VisitorName       string      `json:"visitor_name" db:"visitor_name"`
	VisitorType       VisitorType `json:"visitor_type" db:"visitor_type"`
	FlatNumber        string      `json:"flat_number" db:"flat_number"`
	EntryTime         time.Time   `json:"entry_time" db:"entry_time"`
	ExitTime          NullTime    `json:"exit_time,omitempty" db:"exit_time"`
	Status            VisitStatus `json:"status" db:"status"`
	GatePassCode      NullString  `json:"gate_pass_code,omitempty" db:"gate_pass_code"`
	ApprovedBy        string      `json:"approved_by" db:"approved_by"`
	GatePassExpiresAt NullTime    `json:"gate_pass_expires_at,omitempty" db:"gate_pass_expires_at"`
}

// IsExited reports whether the visitor has left
func (v *Visit) IsExited() bool {
	return v.Status == VisitStatusExited
}

// GatePassExpired reports whether the visit's gate pass has expired at now.
// Visits without a gate pass never expire.
func (v *Visit) GatePassExpired(now time.Time) bool {
	return v.GatePassExpiresAt.Valid && now.After(v.GatePassExpiresAt.Time)
}

// LogEntryRequest represents a walk-in visitor logged at the gate
type LogEntryRequest struct {
	VisitorName string `json:"visitor_name" validate:"required"`
	VisitorType string `json:"visitor_type" validate:"required,oneof=Guest Delivery Other"`
	FlatNumber  string `json:"flat_number" validate:"required"`
}
