package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/societygate/gate-backend/internal/models"
)

// RefreshTokenRepository handles refresh token database operations
type RefreshTokenRepository struct {
	db Queryer
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db Queryer) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Store saves the hash of a refresh token issued to principalID
func (r *RefreshTokenRepository) Store(
	ctx context.Context,
	principalID, token, ipAddress, userAgent string,
	expiresAt time.Time,
) error {
	query := r.db.Rebind(`
		INSERT INTO refresh_tokens (
			id, principal_id, token_hash, ip_address, user_agent,
			created_at, expires_at, revoked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(),
		principalID,
		hashToken(token),
		models.NewNullString(ipAddress),
		models.NewNullString(userAgent),
		time.Now().UTC(),
		expiresAt.UTC(),
		false,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", translate(err))
	}

	return nil
}

// Get retrieves a refresh token by the hash of its raw value
func (r *RefreshTokenRepository) Get(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken

	query := r.db.Rebind(`
		SELECT id, principal_id, token_hash, ip_address, user_agent,
		       created_at, expires_at, last_used_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`)

	if err := r.db.GetContext(ctx, &refreshToken, query, hashToken(token)); err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", translate(err))
	}

	return &refreshToken, nil
}

// Revoke revokes a specific refresh token. Revoking an unknown or revoked token is an ErrNotFound.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked = ?, revoked_at = ?
		WHERE token_hash = ? AND revoked = ?
	`)

	result, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), hashToken(token), false)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("token not found or already revoked: %w", ErrNotFound)
	}

	return nil
}

// RevokeAllForPrincipal revokes every active refresh token of a principal
func (r *RefreshTokenRepository) RevokeAllForPrincipal(ctx context.Context, principalID string) error {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked = ?, revoked_at = ?
		WHERE principal_id = ? AND revoked = ?
	`)

	if _, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), principalID, false); err != nil {
		return fmt.Errorf("failed to revoke principal tokens: %w", err)
	}

	return nil
}

// UpdateLastUsed updates the last_used_at timestamp for a token
func (r *RefreshTokenRepository) UpdateLastUsed(ctx context.Context, token string) error {
	query := r.db.Rebind(`UPDATE refresh_tokens SET last_used_at = ? WHERE token_hash = ?`)

	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), hashToken(token)); err != nil {
		return fmt.Errorf("failed to update last used timestamp: %w", err)
	}

	return nil
}

// CleanupExpired removes expired tokens and tokens revoked before the cutoff
func (r *RefreshTokenRepository) CleanupExpired(ctx context.Context, revokedBefore time.Time) (int64, error) {
	query := r.db.Rebind(`
		DELETE FROM refresh_tokens
		WHERE expires_at < ? OR (revoked = ? AND revoked_at < ?)
	`)

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), true, revokedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
