package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/utils"
)

// Audit actions
const (
	AuditLoginSuccess       = "login_success"
	AuditLoginFailed        = "login_failed"
	AuditLogout             = "logout"
	AuditTokenRefresh       = "token_refresh"
	AuditRateLimitViolation = "rate_limit_violation"
	AuditUserApproved       = "user_approved"
	AuditUserRejected       = "user_rejected"
	AuditVisitExited        = "visit_exited"
	AuditGatePassIssued     = "gate_pass_issued"
	AuditGatePassShared     = "gate_pass_shared"
)

// AuditService handles audit logging for security and gate events
type AuditService struct {
	db      database.DB
	logger  *logrus.Logger
	enabled bool
}

// NewAuditService creates a new audit service. When enabled is false events
// are only logged, never stored.
func NewAuditService(db database.DB, logger *logrus.Logger, enabled bool) *AuditService {
	return &AuditService{
		db:      db,
		logger:  logger,
		enabled: enabled,
	}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	ActorID    string                 // Empty for pre-authentication events
	Action     string                 // e.g. "login_success", "user_approved"
	EntityType string                 // e.g. "user", "visit", "session"
	EntityID   string                 // ID of the affected entity, may be empty
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{} // Stored as JSON text
}

// AuditRecord is a stored audit event
type AuditRecord struct {
	ID         string            `json:"id" db:"id"`
	ActorID    models.NullString `json:"actor_id" db:"actor_id"`
	Action     string            `json:"action" db:"action"`
	EntityType string            `json:"entity_type" db:"entity_type"`
	EntityID   models.NullString `json:"entity_id" db:"entity_id"`
	IPAddress  models.NullString `json:"ip_address" db:"ip_address"`
	UserAgent  models.NullString `json:"user_agent" db:"user_agent"`
	Details    models.NullString `json:"details" db:"details"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// LogLogin logs a login attempt. principal is "admin" or "resident" on success.
func (s *AuditService) LogLogin(ctx context.Context, actorID, email, principal string, client utils.ClientInfo, success bool, reason string) {
	details := map[string]interface{}{
		"email":       email,
		"device_info": utils.ParseUserAgent(client.UserAgent),
	}
	if principal != "" {
		details["principal"] = principal
	}
	if reason != "" {
		details["reason"] = reason
	}

	action := AuditLoginFailed
	if success {
		action = AuditLoginSuccess
	}

	s.record(ctx, AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: "session",
		EntityID:   actorID,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
		Details:    details,
	})
}

// LogRateLimitViolation logs a rate limit violation
func (s *AuditService) LogRateLimitViolation(ctx context.Context, email string, client utils.ClientInfo, limitType string, retryAfter time.Time) {
	s.record(ctx, AuditEvent{
		Action:     AuditRateLimitViolation,
		EntityType: "rate_limit",
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
		Details: map[string]interface{}{
			"email":       email,
			"limit_type":  limitType,
			"retry_after": retryAfter,
		},
	})
}

// LogSession logs a logout or token refresh
func (s *AuditService) LogSession(ctx context.Context, actorID, action string) {
	s.record(ctx, AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: "session",
		EntityID:   actorID,
	})
}

// LogDecision logs an administrator's registration decision
func (s *AuditService) LogDecision(ctx context.Context, actor models.Actor, user *models.User, action string) {
	s.record(ctx, AuditEvent{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: "user",
		EntityID:   user.ID,
		Details: map[string]interface{}{
			"flat_number": user.FlatNumber,
			"role":        user.Role,
		},
	})
}

// LogVisit logs a gate event on a visit. Details must never carry the visit purpose.
func (s *AuditService) LogVisit(ctx context.Context, actor models.Actor, visitID, action string, details map[string]interface{}) {
	s.record(ctx, AuditEvent{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: "visit",
		EntityID:   visitID,
		Details:    details,
	})
}

// record writes the event and logs, but never returns, storage failures
func (s *AuditService) record(ctx context.Context, event AuditEvent) {
	entry := s.logger.WithFields(logrus.Fields{
		"audit_action": event.Action,
		"entity_type":  event.EntityType,
		"entity_id":    event.EntityID,
		"actor_id":     event.ActorID,
	})
	entry.Debug("Audit event")

	if !s.enabled {
		return
	}
	if err := s.logEvent(ctx, event); err != nil {
		entry.WithError(err).Warn("Failed to write audit log")
	}
}

// logEvent is the internal method that writes to the audit_logs table
func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) error {
	var details models.NullString
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = models.NewNullString(string(raw))
	}

	query := s.db.Rebind(`
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(),
		models.NewNullString(event.ActorID),
		event.Action,
		event.EntityType,
		models.NewNullString(event.EntityID),
		models.NewNullString(event.IPAddress),
		models.NewNullString(event.UserAgent),
		details,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// GetRecentEvents retrieves recent audit events for an actor
func (s *AuditService) GetRecentEvents(ctx context.Context, actorID string, limit int) ([]AuditRecord, error) {
	query := s.db.Rebind(`
		SELECT id, actor_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE actor_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`)

	records := []AuditRecord{}
	if err := s.db.SelectContext(ctx, &records, query, actorID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}

	return records, nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().UTC().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM audit_logs WHERE created_at < ?`), cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
