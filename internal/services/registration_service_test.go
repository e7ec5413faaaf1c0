package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/societygate/gate-backend/internal/events"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() models.RegisterRequest {
	return models.RegisterRequest{
		Name:       "John Doe",
		Email:      "John@Example.com ",
		Mobile:     "+919876543210",
		FlatNumber: "A-101",
		Role:       "owner",
		Password:   "password123",
	}
}

func TestRegister_CreatesPendingUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.registration.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "john@example.com", user.Email)
	assert.Equal(t, models.UserStatusPending, user.Status)
	assert.Equal(t, models.RoleOwner, user.Role)
	assert.Equal(t, "+919876543210", user.Mobile.String)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.True(t, passwordMatches(user.PasswordHash, "password123"))

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPending, stored.Status)

	assert.Equal(t, []string{events.UserRegistered}, env.publisher.subjects())
	assert.Equal(t, float64(1), counterValue(t, env.metrics, "society_registrations_total", "pending"))
}

func TestRegister_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registration.Register(context.Background(), models.RegisterRequest{
		Name:       "Jo",
		Email:      "not-an-email",
		Mobile:     "12345",
		FlatNumber: "  ",
		Role:       "guest",
		Password:   "123",
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Fields, "name")
	assert.Contains(t, validationErr.Fields, "email")
	assert.Contains(t, validationErr.Fields, "mobile")
	assert.Contains(t, validationErr.Fields, "flat_number")
	assert.Contains(t, validationErr.Fields, "role")
	assert.Contains(t, validationErr.Fields, "password")

	pending, err := env.registration.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.registration.Register(ctx, validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.FlatNumber = "B-202"
	_, err = env.registration.Register(ctx, req)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "This email is already registered.", conflict.Message)
}

func TestRegister_FlatAlreadyHasApprovedRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createResident(t, "owner@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	_, err := env.registration.Register(ctx, validRegistration())

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "This flat already has an approved owner.", conflict.Message)

	// a tenant for the same flat is still allowed
	req := validRegistration()
	req.Role = "tenant"
	user, err := env.registration.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTenant, user.Role)
}

func TestApproveAndReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))

	pending := env.createResident(t, "jane@example.com", "B-202", models.RoleTenant, models.UserStatusPending)

	approved, err := env.registration.Approve(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusApproved, approved.Status)

	// idempotent
	again, err := env.registration.Approve(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusApproved, again.Status)
	assert.Equal(t, float64(1), counterValue(t, env.metrics, "society_registration_decisions_total", "approved"))

	_, err = env.registration.Reject(ctx, admin, pending.ID)
	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))

	other := env.createResident(t, "peter@example.com", "C-303", models.RoleOwner, models.UserStatusPending)
	rejected, err := env.registration.Reject(ctx, admin, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusRejected, rejected.Status)

	_, err = env.registration.Reject(ctx, admin, other.ID)
	require.NoError(t, err)

	// no re-approval after rejection
	_, err = env.registration.Approve(ctx, admin, other.ID)
	assert.True(t, errors.As(err, &conflict))

	assert.Equal(t, []string{events.UserApproved, events.UserRejected}, env.publisher.subjects())

	records, err := env.audit.GetRecentEvents(ctx, admin.ID, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestApprove_UnknownUserAndNonAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))

	_, err := env.registration.Approve(ctx, admin, "missing")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))

	resident := env.createResident(t, "jane@example.com", "B-202", models.RoleTenant, models.UserStatusApproved)
	pending := env.createResident(t, "mary@example.com", "D-404", models.RoleOwner, models.UserStatusPending)

	_, err = env.registration.Approve(ctx, residentActor(resident), pending.ID)
	var forbidden *ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
}

func TestApprove_SecondOwnerForFlatConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))

	first := env.createResident(t, "first@example.com", "A-101", models.RoleOwner, models.UserStatusPending)
	second := env.createResident(t, "second@example.com", "A-101", models.RoleOwner, models.UserStatusPending)

	_, err := env.registration.Approve(ctx, admin, first.ID)
	require.NoError(t, err)

	_, err = env.registration.Approve(ctx, admin, second.ID)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "This flat already has an approved owner.", conflict.Message)

	stored, err := env.users.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPending, stored.Status)
}

func TestListPending_OldestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.registration.Register(ctx, validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Email = "jane@example.com"
	req.FlatNumber = "B-202"
	second, err := env.registration.Register(ctx, req)
	require.NoError(t, err)

	env.createResident(t, "approved@example.com", "C-303", models.RoleOwner, models.UserStatusApproved)

	pending, err := env.registration.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestRegister_PasswordTooLongForHashing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, password := range []string{strings.Repeat("p", 80), strings.Repeat("é", 40)} {
		req := validRegistration()
		req.Password = password
		_, err := env.registration.Register(ctx, req)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "password of %d bytes", len(password))
		assert.Equal(t, "must be at most 72 bytes", validationErr.Fields["password"])
	}

	req := validRegistration()
	req.Password = strings.Repeat("p", 72)
	_, err := env.registration.Register(ctx, req)
	assert.NoError(t, err)
}

func TestRegister_AdminEmailReserved(t *testing.T) {
	env := newTestEnv(t)
	env.createAdmin(t, "john@example.com", true)

	_, err := env.registration.Register(context.Background(), validRegistration())

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "This email is already registered.", conflict.Message)
}
