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
	"github.com/societygate/gate-backend/pkg/gatepass"
	"github.com/societygate/gate-backend/pkg/notify"
	"github.com/societygate/gate-backend/pkg/validator"
)

// GatePassConfig controls gate pass generation
type GatePassConfig struct {
	Timeout     time.Duration // per generator call
	MaxAttempts int           // generations tried before giving up on unusable output
}

// GatePassService handles pre-approvals, gate pass sharing and verification
type GatePassService struct {
	userRepo  *database.UserRepository
	visitRepo *database.VisitRepository
	client    gatepass.Client
	router    *notify.Router
	phone     *validator.PhoneValidator
	audit     *AuditService
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	config    GatePassConfig
}

// NewGatePassService creates a new gate pass service
func NewGatePassService(
	userRepo *database.UserRepository,
	visitRepo *database.VisitRepository,
	client gatepass.Client,
	router *notify.Router,
	audit *AuditService,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	config GatePassConfig,
) *GatePassService {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}

	return &GatePassService{
		userRepo:  userRepo,
		visitRepo: visitRepo,
		client:    client,
		router:    router,
		phone:     validator.NewPhoneValidator(),
		audit:     audit,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		config:    config,
	}
}

// PreApprove issues a gate pass for a guest of the calling resident and stores
// the pre-approved visit. The purpose is sent to the generator but never
// appears in the stored visit, the returned pass, events or logs.
func (s *GatePassService) PreApprove(ctx context.Context, actor models.Actor, req models.PreApproveRequest) (*models.GatePass, error) {
	req.GuestName = strings.TrimSpace(req.GuestName)
	req.Purpose = strings.TrimSpace(req.Purpose)

	if fields := validator.Struct(req); fields != nil {
		return nil, newValidationError(fields)
	}

	resident, err := s.approvedResident(ctx, actor)
	if err != nil {
		return nil, err
	}

	passReq := gatepass.PassRequest{
		GuestName:  req.GuestName,
		Purpose:    req.Purpose,
		FlatNumber: resident.FlatNumber,
	}

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		entryTime := time.Now().UTC()
		validUntil := entryTime.Add(models.GatePassValidity)

		content, err := s.generate(ctx, passReq)
		if err != nil {
			reason := "generator_error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			s.metrics.GatePassFailures.WithLabelValues(reason).Inc()
			return nil, &GenerationError{Message: "failed to generate gate pass", Err: err}
		}

		pass := gatepass.Sanitize(*content, passReq, validUntil)
		pass.QRData = strings.ToUpper(pass.QRData)

		if !gatepass.ValidCode(pass.QRData) {
			s.metrics.GatePassFailures.WithLabelValues("invalid_code").Inc()
			lastErr = errors.New("generator returned an unusable gate pass code")
			s.logger.WithField("attempt", attempt).Warn("Discarding gate pass with invalid code")
			continue
		}

		visit := &models.Visit{
			VisitorName:       req.GuestName,
			VisitorType:       models.VisitorGuest,
			FlatNumber:        resident.FlatNumber,
			EntryTime:         entryTime,
			Status:            models.VisitStatusPreApproved,
			GatePassCode:      models.NewNullString(pass.QRData),
			ApprovedBy:        actor.ID,
			GatePassExpiresAt: models.NewNullTime(validUntil),
		}

		if err := s.visitRepo.Create(ctx, visit); err != nil {
			if errors.Is(err, database.ErrUniqueViolation) {
				s.metrics.GatePassFailures.WithLabelValues("collision").Inc()
				lastErr = err
				s.logger.WithField("attempt", attempt).Warn("Gate pass code collision, regenerating")
				continue
			}
			return nil, err
		}

		s.metrics.GatePassesIssued.Inc()
		s.audit.LogVisit(ctx, actor, visit.ID, AuditGatePassIssued, map[string]interface{}{
			"flat_number": visit.FlatNumber,
			"expires_at":  validUntil,
			"generator":   s.client.Name(),
		})
		publish(ctx, s.publisher, s.logger, events.VisitPreApproved, visitEvent(visit))

		s.logger.WithFields(logrus.Fields{
			"visit_id":    visit.ID,
			"flat_number": visit.FlatNumber,
			"attempt":     attempt,
		}).Info("Gate pass issued")

		return &models.GatePass{
			VisitID:      visit.ID,
			VisitorName:  visit.VisitorName,
			FlatNumber:   visit.FlatNumber,
			DisplayInfo:  pass.DisplayInfo,
			QRData:       pass.QRData,
			Instructions: pass.Instructions,
			ValidUntil:   validUntil,
		}, nil
	}

	s.metrics.GatePassFailures.WithLabelValues("exhausted").Inc()
	return nil, &GenerationError{Message: "could not generate a usable gate pass", Err: lastErr}
}

func (s *GatePassService) generate(ctx context.Context, req gatepass.PassRequest) (*gatepass.PassContent, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	started := time.Now()
	content, err := s.client.GeneratePass(genCtx, req)
	s.metrics.ObserveGeneration("pass", s.client.Name(), started)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return &gatepass.PassContent{}, nil
	}
	return content, nil
}

// approvedResident re-reads the actor so the flat and status come from the store
func (s *GatePassService) approvedResident(ctx context.Context, actor models.Actor) (*models.User, error) {
	if !actor.HasRole(models.PrincipalResident) {
		return nil, &AuthError{Message: "only approved residents can pre-approve guests"}
	}

	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &AuthError{Message: "only approved residents can pre-approve guests"}
		}
		return nil, err
	}
	if !user.IsApproved() {
		return nil, &AuthError{Message: "only approved residents can pre-approve guests"}
	}

	return user, nil
}

// Share composes a message for one of the actor's gate passes and hands it to
// the transport registered for the method
func (s *GatePassService) Share(ctx context.Context, actor models.Actor, req models.ShareRequest) (*models.ShareResult, error) {
	req.QRData = strings.ToUpper(strings.TrimSpace(req.QRData))
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	req.ContactInfo = strings.TrimSpace(req.ContactInfo)
	req.Instructions = strings.TrimSpace(req.Instructions)

	if fields := validator.Struct(req); fields != nil {
		return nil, newValidationError(fields)
	}

	switch req.Method {
	case notify.MethodEmail:
		req.ContactInfo = validator.NormalizeEmail(req.ContactInfo)
		if !validator.IsEmail(req.ContactInfo) {
			return nil, newValidationError(map[string]string{"contact_info": "must be a valid email address"})
		}
	case notify.MethodSMS:
		normalized, err := s.phone.Validate(req.ContactInfo)
		if err != nil {
			return nil, newValidationError(map[string]string{"contact_info": err.Error()})
		}
		req.ContactInfo = normalized
	}

	visit, err := s.visitRepo.GetByGatePassCode(ctx, req.QRData)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if visit == nil || visit.ApprovedBy != actor.ID {
		return nil, &NotFoundError{Entity: "gate pass", ID: req.QRData}
	}

	now := time.Now().UTC()
	if visit.GatePassExpired(now) {
		return nil, &ExpiredError{Message: "gate pass has expired", ExpiredAt: visit.GatePassExpiresAt.Time}
	}

	instructions := req.Instructions
	if instructions == "" {
		instructions = gatepass.DefaultInstructions
	}

	message, err := s.format(ctx, gatepass.ShareRequest{
		VisitorName:  visit.VisitorName,
		FlatNumber:   visit.FlatNumber,
		QRData:       req.QRData,
		Instructions: instructions,
		ValidUntil:   visit.GatePassExpiresAt.Time,
		Method:       req.Method,
	})
	if err != nil {
		s.metrics.SharesSent.WithLabelValues(req.Method, "generation_failed").Inc()
		return nil, err
	}

	channel := s.router.Channel(req.Method)
	messageID, err := s.router.Send(ctx, notify.Delivery{
		Method:      req.Method,
		ContactInfo: req.ContactInfo,
		Message:     message,
	})
	if err != nil {
		s.metrics.SharesSent.WithLabelValues(req.Method, "failed").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"visit_id": visit.ID,
			"method":   req.Method,
			"contact":  validator.Mask(req.ContactInfo),
		}).Error("Failed to deliver gate pass")
		return nil, &DeliveryError{Channel: channel, Err: err}
	}

	delivered := channel != "dev"
	s.metrics.SharesSent.WithLabelValues(req.Method, "sent").Inc()
	s.audit.LogVisit(ctx, actor, visit.ID, AuditGatePassShared, map[string]interface{}{
		"method":  req.Method,
		"channel": channel,
		"contact": validator.Mask(req.ContactInfo),
	})
	publish(ctx, s.publisher, s.logger, events.GatePassShared, events.ShareEvent{
		VisitID:   visit.ID,
		Method:    req.Method,
		Channel:   channel,
		Delivered: delivered,
	})

	s.logger.WithFields(logrus.Fields{
		"visit_id":   visit.ID,
		"method":     req.Method,
		"channel":    channel,
		"message_id": messageID,
	}).Info("Gate pass shared")

	return &models.ShareResult{
		Message:   message,
		Channel:   channel,
		Delivered: delivered,
		MessageID: messageID,
	}, nil
}

func (s *GatePassService) format(ctx context.Context, req gatepass.ShareRequest) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	started := time.Now()
	message, err := s.client.FormatShareMessage(genCtx, req)
	s.metrics.ObserveGeneration("share", s.client.Name(), started)
	if err != nil {
		return "", &GenerationError{Message: "failed to compose share message", Err: err}
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", &GenerationError{Message: "generator returned an empty share message"}
	}
	return message, nil
}

// VerifyGatePass looks up an unexpired pre-approved visit by its code. It does not change state.
func (s *GatePassService) VerifyGatePass(ctx context.Context, code string) (*models.Visit, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !gatepass.ValidCode(code) {
		return nil, newValidationError(map[string]string{"code": "must be 8 letters or digits"})
	}

	visit, err := s.visitRepo.GetByGatePassCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "gate pass", ID: code}
		}
		return nil, err
	}

	if visit.Status != models.VisitStatusPreApproved {
		return nil, &NotFoundError{Entity: "gate pass", ID: code}
	}

	if visit.GatePassExpired(time.Now().UTC()) {
		return nil, &ExpiredError{Message: "gate pass has expired", ExpiredAt: visit.GatePassExpiresAt.Time}
	}

	return visit, nil
}
