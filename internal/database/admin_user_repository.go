package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/societygate/gate-backend/internal/models"
)

const adminColumns = `id, email, password_hash, full_name, flat_number, is_active, last_login_at, created_at, updated_at`

// AdminUserRepository handles administrator database operations
type AdminUserRepository struct {
	db Queryer
}

// NewAdminUserRepository creates a new admin user repository
func NewAdminUserRepository(db Queryer) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// GetByEmail retrieves an admin user by email
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	query := r.db.Rebind(`SELECT ` + adminColumns + ` FROM admin_users WHERE email = ?`)

	if err := r.db.GetContext(ctx, &admin, query, email); err != nil {
		return nil, fmt.Errorf("failed to get admin user: %w", translate(err))
	}

	return &admin, nil
}

// GetByID retrieves an admin user by ID
func (r *AdminUserRepository) GetByID(ctx context.Context, id string) (*models.AdminUser, error) {
	var admin models.AdminUser
	query := r.db.Rebind(`SELECT ` + adminColumns + ` FROM admin_users WHERE id = ?`)

	if err := r.db.GetContext(ctx, &admin, query, id); err != nil {
		return nil, fmt.Errorf("failed to get admin user: %w", translate(err))
	}

	return &admin, nil
}

// Create creates a new admin user
func (r *AdminUserRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO admin_users (` + adminColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.FullName, admin.FlatNumber,
		admin.IsActive, admin.LastLoginAt, admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", translate(err))
	}

	return nil
}

// UpdateLastLogin updates the last login timestamp
func (r *AdminUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		UPDATE admin_users
		SET last_login_at = ?, updated_at = ?
		WHERE id = ?
	`)

	if _, err := r.db.ExecContext(ctx, query, now, now, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// UpdatePassword updates the admin user's password
func (r *AdminUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	query := r.db.Rebind(`
		UPDATE admin_users
		SET password_hash = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to update password: %w", ErrNotFound)
	}

	return nil
}

// List retrieves all admin users
func (r *AdminUserRepository) List(ctx context.Context) ([]models.AdminUser, error) {
	admins := []models.AdminUser{}
	query := `SELECT ` + adminColumns + ` FROM admin_users ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &admins, query); err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}

	return admins, nil
}
