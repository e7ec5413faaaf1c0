package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/societygate/gate-backend/internal/models"
)

const visitColumns = `id, visitor_name, visitor_type, flat_number, entry_time, exit_time,
	status, gate_pass_code, approved_by, gate_pass_expires_at`

// VisitRepository handles visit database operations. Visits are never deleted.
type VisitRepository struct {
	db Queryer
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db Queryer) *VisitRepository {
	return &VisitRepository{db: db}
}

// Create inserts a visit. Returns ErrUniqueViolation when the gate pass code is already in use.
func (r *VisitRepository) Create(ctx context.Context, visit *models.Visit) error {
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}

	query := r.db.Rebind(`
		INSERT INTO visits (` + visitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		visit.ID, visit.VisitorName, visit.VisitorType, visit.FlatNumber,
		visit.EntryTime, visit.ExitTime, visit.Status, visit.GatePassCode,
		visit.ApprovedBy, visit.GatePassExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", translate(err))
	}

	return nil
}

// GetByID retrieves a visit by ID
func (r *VisitRepository) GetByID(ctx context.Context, id string) (*models.Visit, error) {
	var visit models.Visit
	query := r.db.Rebind(`SELECT ` + visitColumns + ` FROM visits WHERE id = ?`)

	if err := r.db.GetContext(ctx, &visit, query, id); err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", translate(err))
	}

	return &visit, nil
}

// GetByGatePassCode retrieves the visit issued with the given gate pass code
func (r *VisitRepository) GetByGatePassCode(ctx context.Context, code string) (*models.Visit, error) {
	var visit models.Visit
	query := r.db.Rebind(`SELECT ` + visitColumns + ` FROM visits WHERE gate_pass_code = ?`)

	if err := r.db.GetContext(ctx, &visit, query, code); err != nil {
		return nil, fmt.Errorf("failed to get visit by gate pass: %w", translate(err))
	}

	return &visit, nil
}

// ListByStatus returns visits in the given status, most recent entry first
func (r *VisitRepository) ListByStatus(ctx context.Context, status models.VisitStatus) ([]models.Visit, error) {
	visits := []models.Visit{}
	query := r.db.Rebind(`
		SELECT ` + visitColumns + `
		FROM visits
		WHERE status = ?
		ORDER BY entry_time DESC
	`)

	if err := r.db.SelectContext(ctx, &visits, query, status); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}

	return visits, nil
}

// ListByApprover returns visits approved by the given principal, most recent entry first
func (r *VisitRepository) ListByApprover(ctx context.Context, approvedBy string) ([]models.Visit, error) {
	visits := []models.Visit{}
	query := r.db.Rebind(`
		SELECT ` + visitColumns + `
		FROM visits
		WHERE approved_by = ?
		ORDER BY entry_time DESC
	`)

	if err := r.db.SelectContext(ctx, &visits, query, approvedBy); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}

	return visits, nil
}

// MarkExited sets status Exited and the exit time, only if the visit has not exited yet.
// It reports whether this call performed the transition.
func (r *VisitRepository) MarkExited(ctx context.Context, id string, exitTime time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE visits
		SET status = ?, exit_time = ?
		WHERE id = ? AND status <> ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		models.VisitStatusExited, exitTime, id, models.VisitStatusExited,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark visit exited: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}
