package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/database"
)

// CronConfig holds the schedules of the maintenance jobs.
// Specs use the six-field format: second minute hour day month weekday.
type CronConfig struct {
	TokenCleanupSpec   string
	AttemptCleanupSpec string
	AttemptRetention   time.Duration
}

// CronService manages scheduled background jobs
type CronService struct {
	cron             *cron.Cron
	refreshTokenRepo *database.RefreshTokenRepository
	rateLimiter      *RateLimitService
	logger           *logrus.Logger
	config           CronConfig
}

// NewCronService creates a new CronService
func NewCronService(
	refreshTokenRepo *database.RefreshTokenRepository,
	rateLimiter *RateLimitService,
	logger *logrus.Logger,
	config CronConfig,
) *CronService {
	return &CronService{
		cron:             cron.New(cron.WithSeconds()),
		refreshTokenRepo: refreshTokenRepo,
		rateLimiter:      rateLimiter,
		logger:           logger,
		config:           config,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.config.TokenCleanupSpec, s.cleanupRefreshTokensJob); err != nil {
		return fmt.Errorf("failed to schedule refresh token cleanup: %w", err)
	}
	s.logger.WithField("spec", s.config.TokenCleanupSpec).Info("Scheduled: refresh token cleanup")

	if _, err := s.cron.AddFunc(s.config.AttemptCleanupSpec, s.cleanupLoginAttemptsJob); err != nil {
		return fmt.Errorf("failed to schedule login attempt cleanup: %w", err)
	}
	s.logger.WithField("spec", s.config.AttemptCleanupSpec).Info("Scheduled: login attempt cleanup")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// cleanupRefreshTokensJob removes expired tokens and tokens revoked more than a day ago
func (s *CronService) cleanupRefreshTokensJob() {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.refreshTokenRepo.CleanupExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup refresh tokens")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Cleaned up refresh tokens")
}

// cleanupLoginAttemptsJob removes login attempts past the retention period
func (s *CronService) cleanupLoginAttemptsJob() {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.rateLimiter.CleanupOldAttempts(ctx, s.config.AttemptRetention)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup login attempts")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Cleaned up login attempts")
}

// RunNow runs every maintenance job once, synchronously
func (s *CronService) RunNow() {
	s.cleanupRefreshTokensJob()
	s.cleanupLoginAttemptsJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
