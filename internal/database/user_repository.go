package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/societygate/gate-backend/internal/models"
)

const userColumns = `id, name, email, mobile, flat_number, role, status, password_hash, created_at, updated_at`

// UserRepository handles resident database operations
type UserRepository struct {
	db Queryer
}

// NewUserRepository creates a new user repository
func NewUserRepository(db Queryer) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new resident. ID and timestamps are filled in when empty.
// Returns ErrUniqueViolation when the email is taken, or when an approved
// resident already holds the flat and role.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.Mobile, user.FlatNumber,
		user.Role, user.Status, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}

	return nil
}

// GetByID retrieves a resident by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translate(err))
	}

	return &user, nil
}

// GetByEmail retrieves a resident by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)

	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translate(err))
	}

	return &user, nil
}

// FindApprovedByFlatRole returns the approved resident holding flat and role, if any
func (r *UserRepository) FindApprovedByFlatRole(ctx context.Context, flatNumber string, role models.UserRole) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE flat_number = ? AND role = ? AND status = ?
	`)

	if err := r.db.GetContext(ctx, &user, query, flatNumber, role, models.UserStatusApproved); err != nil {
		return nil, fmt.Errorf("failed to find approved resident: %w", translate(err))
	}

	return &user, nil
}

// ListByStatus returns residents with the given status, oldest registration first
func (r *UserRepository) ListByStatus(ctx context.Context, status models.UserStatus) ([]models.User, error) {
	users := []models.User{}
	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE status = ?
		ORDER BY created_at ASC
	`)

	if err := r.db.SelectContext(ctx, &users, query, status); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// TransitionStatus moves a resident from one status to another in a single
// conditional update. It reports false when the row was not in the from status.
func (r *UserRepository) TransitionStatus(ctx context.Context, id string, from, to models.UserStatus) (bool, error) {
	query := r.db.Rebind(`
		UPDATE users
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)

	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update user status: %w", translate(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}
