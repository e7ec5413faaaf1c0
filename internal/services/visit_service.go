package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/events"
	"github.com/societygate/gate-backend/internal/metrics"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/pkg/validator"
)

// VisitService handles walk-in entries, exits and visit listings
type VisitService struct {
	visitRepo *database.VisitRepository
	audit     *AuditService
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewVisitService creates a new visit service
func NewVisitService(
	visitRepo *database.VisitRepository,
	audit *AuditService,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *VisitService {
	return &VisitService{
		visitRepo: visitRepo,
		audit:     audit,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// LogEntry records a walk-in visitor who is now inside
func (s *VisitService) LogEntry(ctx context.Context, actor models.Actor, req models.LogEntryRequest) (*models.Visit, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "only administrators can log gate entries"}
	}

	req.VisitorName = strings.TrimSpace(req.VisitorName)
	req.VisitorType = strings.TrimSpace(req.VisitorType)
	req.FlatNumber = strings.TrimSpace(req.FlatNumber)

	if fields := validator.Struct(req); fields != nil {
		return nil, newValidationError(fields)
	}

	visit := &models.Visit{
		VisitorName: req.VisitorName,
		VisitorType: models.VisitorType(req.VisitorType),
		FlatNumber:  req.FlatNumber,
		EntryTime:   time.Now().UTC(),
		Status:      models.VisitStatusInside,
		ApprovedBy:  actor.ID,
	}

	if err := s.visitRepo.Create(ctx, visit); err != nil {
		return nil, err
	}

	s.metrics.VisitsLogged.WithLabelValues(string(visit.VisitorType)).Inc()
	publish(ctx, s.publisher, s.logger, events.VisitEntered, visitEvent(visit))

	s.logger.WithFields(logrus.Fields{
		"visit_id":     visit.ID,
		"visitor_type": visit.VisitorType,
		"flat_number":  visit.FlatNumber,
	}).Info("Visitor entry logged")

	return visit, nil
}

// MarkExited records that a visitor has left. Administrators may exit any
// visit; residents only visits they approved. An exited visit is returned unchanged.
func (s *VisitService) MarkExited(ctx context.Context, actor models.Actor, visitID string) (*models.Visit, error) {
	visit, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && visit.ApprovedBy != actor.ID {
		return nil, &ForbiddenError{Message: "you can only update your own visitors"}
	}

	if visit.IsExited() {
		return visit, nil
	}

	updated, err := s.visitRepo.MarkExited(ctx, visit.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	visit, err = s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if updated {
		s.metrics.VisitsExited.Inc()
		s.audit.LogVisit(ctx, actor, visit.ID, AuditVisitExited, nil)
		publish(ctx, s.publisher, s.logger, events.VisitExited, visitEvent(visit))

		s.logger.WithFields(logrus.Fields{
			"visit_id": visit.ID,
			"actor_id": actor.ID,
		}).Info("Visitor exit recorded")
	}

	return visit, nil
}

// ListLive returns visitors currently inside, newest entry first
func (s *VisitService) ListLive(ctx context.Context) ([]models.Visit, error) {
	return s.visitRepo.ListByStatus(ctx, models.VisitStatusInside)
}

// ListMine returns the visits the actor approved, newest entry first
func (s *VisitService) ListMine(ctx context.Context, actor models.Actor) ([]models.Visit, error) {
	return s.visitRepo.ListByApprover(ctx, actor.ID)
}

func (s *VisitService) getVisit(ctx context.Context, visitID string) (*models.Visit, error) {
	visit, err := s.visitRepo.GetByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "visit", ID: visitID}
		}
		return nil, err
	}
	return visit, nil
}

func visitEvent(visit *models.Visit) events.VisitEvent {
	return events.VisitEvent{
		VisitID:     visit.ID,
		VisitorName: visit.VisitorName,
		VisitorType: string(visit.VisitorType),
		FlatNumber:  visit.FlatNumber,
		Status:      string(visit.Status),
		ApprovedBy:  visit.ApprovedBy,
	}
}
