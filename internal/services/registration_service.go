package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/events"
	"github.com/societygate/gate-backend/internal/metrics"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/pkg/validator"
)

// RegistrationService handles resident sign-up and administrator approval
type RegistrationService struct {
	userRepo   *database.UserRepository
	adminRepo  *database.AdminUserRepository
	audit      *AuditService
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	bcryptCost int
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(
	userRepo *database.UserRepository,
	adminRepo *database.AdminUserRepository,
	audit *AuditService,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	bcryptCost int,
) *RegistrationService {
	return &RegistrationService{
		userRepo:   userRepo,
		adminRepo:  adminRepo,
		audit:      audit,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

func flatTakenError(role models.UserRole) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf("This flat already has an approved %s.", role)}
}

// Register creates a pending resident
func (s *RegistrationService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = validator.NormalizeEmail(req.Email)
	req.Mobile = strings.TrimSpace(req.Mobile)
	req.FlatNumber = strings.TrimSpace(req.FlatNumber)
	req.Role = strings.TrimSpace(req.Role)

	if fields := validator.Struct(req); fields != nil {
		s.metrics.Registrations.WithLabelValues("invalid").Inc()
		return nil, newValidationError(fields)
	}

	role := models.UserRole(req.Role)

	_, err := s.userRepo.FindApprovedByFlatRole(ctx, req.FlatNumber, role)
	switch {
	case err == nil:
		s.metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, flatTakenError(role)
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	// administrator emails are reserved; login resolves them first
	if _, err = s.adminRepo.GetByEmail(ctx, req.Email); err == nil {
		s.metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, &ConflictError{Message: "This email is already registered."}
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	_, err = s.userRepo.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		s.metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, &ConflictError{Message: "This email is already registered."}
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	passwordHash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Mobile:       models.NewNullString(req.Mobile),
		FlatNumber:   req.FlatNumber,
		Role:         role,
		Status:       models.UserStatusPending,
		PasswordHash: passwordHash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			s.metrics.Registrations.WithLabelValues("conflict").Inc()
			return nil, &ConflictError{Message: "This email is already registered."}
		}
		return nil, err
	}

	s.metrics.Registrations.WithLabelValues("pending").Inc()
	publish(ctx, s.publisher, s.logger, events.UserRegistered, userEvent(user, ""))

	s.logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"flat_number": user.FlatNumber,
		"role":        user.Role,
	}).Info("Resident registered")

	return user, nil
}

// Approve marks a pending resident as approved. Approving an approved
// resident returns it unchanged.
func (s *RegistrationService) Approve(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	return s.decide(ctx, actor, userID, models.UserStatusApproved)
}

// Reject marks a pending resident as rejected. Rejecting a rejected
// resident returns it unchanged.
func (s *RegistrationService) Reject(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	return s.decide(ctx, actor, userID, models.UserStatusRejected)
}

func (s *RegistrationService) decide(ctx context.Context, actor models.Actor, userID string, to models.UserStatus) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "only administrators can review registrations"}
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch user.Status {
	case to:
		return user, nil
	case models.UserStatusPending:
	default:
		return nil, &ConflictError{Message: fmt.Sprintf("registration is already %s", user.Status)}
	}

	updated, err := s.userRepo.TransitionStatus(ctx, user.ID, models.UserStatusPending, to)
	if err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, flatTakenError(user.Role)
		}
		return nil, err
	}

	user, err = s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !updated {
		// a concurrent decision won; report it like a repeated call would
		if user.Status == to {
			return user, nil
		}
		return nil, &ConflictError{Message: fmt.Sprintf("registration is already %s", user.Status)}
	}

	action, subject := AuditUserApproved, events.UserApproved
	if to == models.UserStatusRejected {
		action, subject = AuditUserRejected, events.UserRejected
	}

	s.audit.LogDecision(ctx, actor, user, action)
	s.metrics.Approvals.WithLabelValues(string(to)).Inc()
	publish(ctx, s.publisher, s.logger, subject, userEvent(user, actor.ID))

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"status":   user.Status,
		"admin_id": actor.ID,
	}).Info("Registration reviewed")

	return user, nil
}

func (s *RegistrationService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "user", ID: userID}
		}
		return nil, err
	}
	return user, nil
}

// ListPending returns residents awaiting approval, oldest first
func (s *RegistrationService) ListPending(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListByStatus(ctx, models.UserStatusPending)
}

func userEvent(user *models.User, actorID string) events.UserEvent {
	return events.UserEvent{
		UserID:     user.ID,
		FlatNumber: user.FlatNumber,
		Role:       string(user.Role),
		Status:     string(user.Status),
		ActorID:    actorID,
	}
}

// publish emits an event and only logs failures
func publish(ctx context.Context, publisher events.Publisher, logger *logrus.Logger, subject string, data interface{}) {
	if err := publisher.Publish(ctx, subject, data); err != nil {
		logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}
