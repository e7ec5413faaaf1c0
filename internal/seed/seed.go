// Package seed loads demonstration data into an empty database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/services"
)

// DefaultPassword is the password of every seeded account
const DefaultPassword = "password123"

// AdminEmail is the seeded administrator's login
const AdminEmail = "admin@society.com"

// ErrAlreadySeeded is returned when the seed administrator already exists
var ErrAlreadySeeded = errors.New("database already contains seed data")

// Result counts what was inserted
type Result struct {
	Admins    int
	Residents int
	Visits    int
}

type resident struct {
	key    string
	name   string
	email  string
	flat   string
	role   models.UserRole
	status models.UserStatus
}

var residents = []resident{
	{"john", "John Doe", "john.doe@example.com", "B-203", models.RoleOwner, models.UserStatusApproved},
	{"jane", "Jane Smith", "jane.smith@example.com", "C-401", models.RoleTenant, models.UserStatusApproved},
	{"peter", "Peter Jones", "peter.jones@example.com", "A-102", models.RoleOwner, models.UserStatusPending},
	{"mary", "Mary Jane", "mary.jane@example.com", "B-203", models.RoleTenant, models.UserStatusPending},
}

// Run inserts one administrator, four residents and a handful of visits in
// a single transaction. It refuses to run twice.
func Run(ctx context.Context, db *database.SQLDB, bcryptCost int) (*Result, error) {
	if _, err := database.NewAdminUserRepository(db).GetByEmail(ctx, AdminEmail); err == nil {
		return nil, ErrAlreadySeeded
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash, err := services.HashPassword(DefaultPassword, bcryptCost)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = db.InTx(ctx, func(tx database.Queryer) error {
		var err error
		result, err = insert(ctx, tx, hash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insert(ctx context.Context, tx database.Queryer, hash string) (*Result, error) {
	admins := database.NewAdminUserRepository(tx)
	users := database.NewUserRepository(tx)
	visits := database.NewVisitRepository(tx)

	result := &Result{}

	if err := admins.Create(ctx, &models.AdminUser{
		Email:        AdminEmail,
		PasswordHash: hash,
		FullName:     "Admin User",
		FlatNumber:   models.NewNullString("A-101"),
		IsActive:     true,
	}); err != nil {
		return nil, err
	}
	result.Admins++

	ids := make(map[string]string, len(residents))
	for _, r := range residents {
		user := &models.User{
			Name:         r.name,
			Email:        r.email,
			FlatNumber:   r.flat,
			Role:         r.role,
			Status:       r.status,
			PasswordHash: hash,
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("seeding %s: %w", r.email, err)
		}
		ids[r.key] = user.ID
		result.Residents++
	}

	now := time.Now().UTC()
	aliceEntry := now.Add(-2 * time.Hour)
	seeded := []*models.Visit{
		{
			VisitorName:       "Alice",
			VisitorType:       models.VisitorGuest,
			FlatNumber:        "B-203",
			EntryTime:         aliceEntry,
			ExitTime:          models.NewNullTime(now.Add(-time.Hour)),
			Status:            models.VisitStatusExited,
			GatePassCode:      models.NewNullString("ABC12345"),
			ApprovedBy:        ids["john"],
			GatePassExpiresAt: models.NewNullTime(aliceEntry.Add(models.GatePassValidity)),
		},
		{
			VisitorName: "Zomato Delivery",
			VisitorType: models.VisitorDelivery,
			FlatNumber:  "C-401",
			EntryTime:   now.Add(-30 * time.Minute),
			Status:      models.VisitStatusInside,
			ApprovedBy:  ids["jane"],
		},
		{
			VisitorName: "Bob",
			VisitorType: models.VisitorGuest,
			FlatNumber:  "C-401",
			EntryTime:   now.Add(-time.Hour),
			Status:      models.VisitStatusInside,
			ApprovedBy:  ids["jane"],
		},
		{
			VisitorName:       "Charlie",
			VisitorType:       models.VisitorGuest,
			FlatNumber:        "B-203",
			EntryTime:         now,
			Status:            models.VisitStatusPreApproved,
			GatePassCode:      models.NewNullString("XYZ98765"),
			ApprovedBy:        ids["john"],
			GatePassExpiresAt: models.NewNullTime(now.Add(models.GatePassValidity)),
		},
	}
	for _, v := range seeded {
		if err := visits.Create(ctx, v); err != nil {
			return nil, fmt.Errorf("seeding visit %s: %w", v.VisitorName, err)
		}
		result.Visits++
	}

	return result, nil
}
