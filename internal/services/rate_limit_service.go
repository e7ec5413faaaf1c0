package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/societygate/gate-backend/internal/database"
)

// RateLimitService limits failed login attempts per email and per IP
type RateLimitService struct {
	db     database.DB
	config RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxEmailFailures int           // Max failed logins per email
	MaxIPFailures    int           // Max failed logins per IP
	Window           time.Duration // Time window for both limits
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailFailures: 5,                // 5 failures
		MaxIPFailures:    20,               // 20 failures
		Window:           15 * time.Minute, // per 15 minutes
	}
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: config,
	}
}

// CheckLoginRateLimit checks if an email or IP has too many recent failed logins
func (s *RateLimitService) CheckLoginRateLimit(ctx context.Context, email, ip string) error {
	if email != "" && s.config.MaxEmailFailures > 0 {
		failures, err := s.recentFailures(ctx, "email", email)
		if err != nil {
			return fmt.Errorf("failed to check email rate limit: %w", err)
		}

		if len(failures) >= s.config.MaxEmailFailures {
			retryAfter := failures[len(failures)-s.config.MaxEmailFailures].Add(s.config.Window)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed login attempts for this account. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "email",
			}
		}
	}

	if ip != "" && s.config.MaxIPFailures > 0 {
		failures, err := s.recentFailures(ctx, "ip_address", ip)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}

		if len(failures) >= s.config.MaxIPFailures {
			retryAfter := failures[len(failures)-s.config.MaxIPFailures].Add(s.config.Window)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed login attempts from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}

	return nil
}

// recentFailures returns failed attempt times within the window, oldest first.
// column is a trusted constant, never user input.
func (s *RateLimitService) recentFailures(ctx context.Context, column, value string) ([]time.Time, error) {
	windowStart := time.Now().UTC().Add(-s.config.Window)

	query := s.db.Rebind(`
		SELECT attempted_at
		FROM login_attempts
		WHERE ` + column + ` = ?
		  AND success = ?
		  AND attempted_at > ?
		ORDER BY attempted_at ASC
	`)

	var attempts []time.Time
	if err := s.db.SelectContext(ctx, &attempts, query, value, false, windowStart); err != nil {
		return nil, err
	}

	return attempts, nil
}

// RecordLoginAttempt records a login attempt for rate limiting
func (s *RateLimitService) RecordLoginAttempt(ctx context.Context, email, ip string, success bool) error {
	query := s.db.Rebind(`
		INSERT INTO login_attempts (id, email, ip_address, success, attempted_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query, uuid.NewString(), email, ip, success, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// CleanupOldAttempts removes attempts older than retention
func (s *RateLimitService) CleanupOldAttempts(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < s.config.Window {
		retention = s.config.Window
	}
	cutoffTime := time.Now().UTC().Add(-retention)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM login_attempts WHERE attempted_at < ?`), cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup login attempts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
