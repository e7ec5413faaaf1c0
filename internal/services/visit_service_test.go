package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/societygate/gate-backend/internal/events"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))

	visit, err := env.visitSvc.LogEntry(ctx, admin, models.LogEntryRequest{
		VisitorName: " Sam Courier ",
		VisitorType: "Delivery",
		FlatNumber:  "A-101",
	})
	require.NoError(t, err)

	assert.Equal(t, "Sam Courier", visit.VisitorName)
	assert.Equal(t, models.VisitStatusInside, visit.Status)
	assert.Equal(t, admin.ID, visit.ApprovedBy)
	assert.False(t, visit.ExitTime.Valid)
	assert.False(t, visit.GatePassCode.Valid)
	assert.WithinDuration(t, time.Now(), visit.EntryTime, 5*time.Second)

	assert.Equal(t, []string{events.VisitEntered}, env.publisher.subjects())
	assert.Equal(t, float64(1), counterValue(t, env.metrics, "society_visits_logged_total", "Delivery"))
}

func TestLogEntry_Validation(t *testing.T) {
	env := newTestEnv(t)
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))

	_, err := env.visitSvc.LogEntry(context.Background(), admin, models.LogEntryRequest{
		VisitorName: "",
		VisitorType: "Plumber",
		FlatNumber:  " ",
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Len(t, validationErr.Fields, 3)
	assert.Contains(t, validationErr.Fields["visitor_type"], "Guest")
}

func TestLogEntry_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	resident := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	_, err := env.visitSvc.LogEntry(context.Background(), residentActor(resident), models.LogEntryRequest{
		VisitorName: "Sam", VisitorType: "Guest", FlatNumber: "A-101",
	})

	var forbidden *ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
}

func TestMarkExited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))

	visit, err := env.visitSvc.LogEntry(ctx, admin, models.LogEntryRequest{
		VisitorName: "Sam", VisitorType: "Guest", FlatNumber: "A-101",
	})
	require.NoError(t, err)

	exited, err := env.visitSvc.MarkExited(ctx, admin, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusExited, exited.Status)
	require.True(t, exited.ExitTime.Valid)
	assert.False(t, exited.ExitTime.Time.Before(exited.EntryTime))

	// second call leaves the exit time alone
	again, err := env.visitSvc.MarkExited(ctx, admin, visit.ID)
	require.NoError(t, err)
	assert.True(t, exited.ExitTime.Time.Equal(again.ExitTime.Time))

	assert.Equal(t, float64(1), counterValue(t, env.metrics, "society_visits_exited_total", ""))
	assert.Equal(t, []string{events.VisitEntered, events.VisitExited}, env.publisher.subjects())

	_, err = env.visitSvc.MarkExited(ctx, admin, "missing")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestMarkExited_ResidentOwnVisitsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)
	other := env.createResident(t, "jane@example.com", "B-202", models.RoleTenant, models.UserStatusApproved)

	env.client.passes[0].QRData = "JOHN0001"
	pass, err := env.gatePass.PreApprove(ctx, residentActor(owner), models.PreApproveRequest{
		GuestName: "Alice", Purpose: "dinner",
	})
	require.NoError(t, err)

	_, err = env.visitSvc.MarkExited(ctx, residentActor(other), pass.VisitID)
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	exited, err := env.visitSvc.MarkExited(ctx, residentActor(owner), pass.VisitID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusExited, exited.Status)
}

func TestListLiveAndMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := adminActor(env.createAdmin(t, "admin@example.com", true))
	resident := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	base := time.Now().UTC().Add(-time.Hour)
	for i, status := range []models.VisitStatus{models.VisitStatusInside, models.VisitStatusInside, models.VisitStatusExited} {
		v := &models.Visit{
			VisitorName: "Visitor",
			VisitorType: models.VisitorGuest,
			FlatNumber:  "A-101",
			EntryTime:   base.Add(time.Duration(i) * time.Minute),
			Status:      status,
			ApprovedBy:  resident.ID,
		}
		if status == models.VisitStatusExited {
			v.ExitTime = models.NewNullTime(base.Add(30 * time.Minute))
		}
		require.NoError(t, env.visits.Create(ctx, v))
	}
	_, err := env.visitSvc.LogEntry(ctx, admin, models.LogEntryRequest{VisitorName: "Walk-in", VisitorType: "Other", FlatNumber: "C-303"})
	require.NoError(t, err)

	live, err := env.visitSvc.ListLive(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 3)
	for _, v := range live {
		assert.Equal(t, models.VisitStatusInside, v.Status)
	}

	mine, err := env.visitSvc.ListMine(ctx, residentActor(resident))
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.True(t, mine[0].EntryTime.After(mine[1].EntryTime))
	assert.True(t, mine[1].EntryTime.After(mine[2].EntryTime))
	for _, v := range mine {
		assert.Equal(t, resident.ID, v.ApprovedBy)
	}
}
