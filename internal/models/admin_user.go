package models

import (
	"time"
)

// AdminUser represents a society administrator (gate office)
type AdminUser struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never expose password hash in JSON
	FullName     string     `json:"full_name" db:"full_name"`
	FlatNumber   NullString `json:"flat_number,omitempty" db:"flat_number"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  NullTime   `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// RefreshToken represents a stored JWT refresh token. Only the hash is kept.
type RefreshToken struct {
	ID          string     `json:"id" db:"id"`
	PrincipalID string     `json:"principal_id" db:"principal_id"`
	TokenHash   string     `json:"-" db:"token_hash"` // Never expose
	IPAddress   NullString `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   NullString `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt  NullTime   `json:"last_used_at,omitempty" db:"last_used_at"`
	Revoked     bool       `json:"revoked" db:"revoked"`
	RevokedAt   NullTime   `json:"revoked_at,omitempty" db:"revoked_at"`
}
