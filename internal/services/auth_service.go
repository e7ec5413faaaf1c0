package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/metrics"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/utils"
	"github.com/societygate/gate-backend/pkg/jwt"
	"github.com/societygate/gate-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "invalid email or password"

// Dashboards returned with a session
const (
	AdminRedirect    = "/admin"
	ResidentRedirect = "/dashboard"
)

// AuthService handles login and session management for administrators and residents
type AuthService struct {
	adminRepo        *database.AdminUserRepository
	userRepo         *database.UserRepository
	refreshTokenRepo *database.RefreshTokenRepository
	jwtService       *jwt.Service
	rateLimiter      *RateLimitService
	audit            *AuditService
	metrics          *metrics.Metrics
	logger           *logrus.Logger
	bcryptCost       int

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new auth service
func NewAuthService(
	adminRepo *database.AdminUserRepository,
	userRepo *database.UserRepository,
	refreshTokenRepo *database.RefreshTokenRepository,
	jwtService *jwt.Service,
	rateLimiter *RateLimitService,
	audit *AuditService,
	m *metrics.Metrics,
	logger *logrus.Logger,
	bcryptCost int,
) *AuthService {
	return &AuthService{
		adminRepo:        adminRepo,
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtService:       jwtService,
		rateLimiter:      rateLimiter,
		audit:            audit,
		metrics:          m,
		logger:           logger,
		bcryptCost:       bcryptCost,
	}
}

// HashPassword hashes a password with bcrypt at the given cost
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// spendHashTime runs one bcrypt comparison against a throwaway hash so a
// login for an unknown email takes as long as a wrong password
func (s *AuthService) spendHashTime(password string) {
	s.dummyOnce.Do(func() {
		hash, err := HashPassword("no-such-account", s.bcryptCost)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to build placeholder password hash")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		passwordMatches(s.dummyHash, password)
	}
}

func adminPasswordProblems(password string) map[string]string {
	switch {
	case len(password) < 8:
		return map[string]string{"password": "must be at least 8 characters"}
	case !validator.PasswordFits(password):
		return map[string]string{"password": fmt.Sprintf("must be at most %d bytes", validator.MaxPasswordBytes)}
	}
	return nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// principal is the authenticated identity behind a session
type principal struct {
	id         string
	email      string
	roles      []string
	flatNumber string
	kind       string // models.PrincipalAdmin or models.PrincipalResident
	value      interface{}
}

func adminPrincipal(admin *models.AdminUser) *principal {
	return &principal{
		id:         admin.ID,
		email:      admin.Email,
		roles:      []string{models.PrincipalAdmin},
		flatNumber: admin.FlatNumber.String,
		kind:       models.PrincipalAdmin,
		value:      admin,
	}
}

func residentPrincipal(user *models.User) *principal {
	return &principal{
		id:         user.ID,
		email:      user.Email,
		roles:      []string{models.PrincipalResident, string(user.Role)},
		flatNumber: user.FlatNumber,
		kind:       models.PrincipalResident,
		value:      user,
	}
}

// Login authenticates an administrator or an approved resident and returns a session.
// Administrators are checked first.
func (s *AuthService) Login(ctx context.Context, email, password string, client utils.ClientInfo) (*models.Session, error) {
	email = validator.NormalizeEmail(email)

	if err := s.rateLimiter.CheckLoginRateLimit(ctx, email, client.IP); err != nil {
		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.audit.LogRateLimitViolation(ctx, email, client, rateLimitErr.Type, rateLimitErr.RetryAfter)
			s.metrics.Logins.WithLabelValues("unknown", "rate_limited").Inc()
		}
		return nil, err
	}

	p, reason, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if p == nil {
		s.recordAttempt(ctx, email, client, false)
		s.audit.LogLogin(ctx, "", email, "", client, false, reason)
		s.metrics.Logins.WithLabelValues("unknown", "failed").Inc()
		s.logger.WithFields(logrus.Fields{
			"email":  email,
			"ip":     client.IP,
			"reason": reason,
		}).Info("Login failed")
		return nil, &AuthError{Message: invalidCredentials}
	}

	session, err := s.issueSession(ctx, p, client)
	if err != nil {
		return nil, err
	}

	s.recordAttempt(ctx, email, client, true)
	s.audit.LogLogin(ctx, p.id, email, p.kind, client, true, "")
	s.metrics.Logins.WithLabelValues(p.kind, "success").Inc()

	if p.kind == models.PrincipalAdmin {
		if err := s.adminRepo.UpdateLastLogin(ctx, p.id); err != nil {
			// Log error but don't fail the login
			s.logger.WithError(err).WithField("admin_id", p.id).Warn("Failed to update last login")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"principal_id": p.id,
		"principal":    p.kind,
	}).Info("Login successful")

	return session, nil
}

// authenticate returns the matching principal, or nil and a reason when the
// credentials are not acceptable. Errors are storage failures only.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*principal, string, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if admin.IsActive && passwordMatches(admin.PasswordHash, password) {
			return adminPrincipal(admin), "", nil
		}
	case !errors.Is(err, database.ErrNotFound):
		return nil, "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			if admin != nil {
				return nil, "admin credentials rejected", nil
			}
			s.spendHashTime(password)
			return nil, "unknown email", nil
		}
		return nil, "", err
	}

	if !passwordMatches(user.PasswordHash, password) {
		return nil, "wrong password", nil
	}
	if !user.IsApproved() {
		return nil, "registration " + string(user.Status), nil
	}

	return residentPrincipal(user), "", nil
}

func (s *AuthService) recordAttempt(ctx context.Context, email string, client utils.ClientInfo, success bool) {
	if err := s.rateLimiter.RecordLoginAttempt(ctx, email, client.IP, success); err != nil {
		s.logger.WithError(err).Warn("Failed to record login attempt")
	}
}

func (s *AuthService) issueSession(ctx context.Context, p *principal, client utils.ClientInfo) (*models.Session, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(p.id, p.email, p.roles, p.flatNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(p.id, p.email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.jwtService.RefreshTokenExpiry())
	if err := s.refreshTokenRepo.Store(ctx, p.id, refreshToken, client.IP, client.UserAgent, expiresAt); err != nil {
		return nil, err
	}

	return s.session(p, accessToken, refreshToken), nil
}

func (s *AuthService) session(p *principal, accessToken, refreshToken string) *models.Session {
	redirect := ResidentRedirect
	if p.kind == models.PrincipalAdmin {
		redirect = AdminRedirect
	}

	return &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		Role:         p.kind,
		Redirect:     redirect,
		Principal:    p.value,
	}
}

// Refresh issues a new access token for a valid, unrevoked refresh token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, &AuthError{Message: "invalid refresh token"}
	}

	storedToken, err := s.refreshTokenRepo.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &AuthError{Message: "refresh token not found"}
		}
		return nil, err
	}

	if storedToken.Revoked {
		return nil, &AuthError{Message: "refresh token has been revoked"}
	}

	if time.Now().UTC().After(storedToken.ExpiresAt) {
		return nil, &AuthError{Message: "refresh token has expired"}
	}

	p, err := s.loadPrincipal(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwtService.GenerateAccessToken(p.id, p.email, p.roles, p.flatNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if err := s.refreshTokenRepo.UpdateLastUsed(ctx, refreshToken); err != nil {
		s.logger.WithError(err).Warn("Failed to update refresh token last used")
	}
	s.audit.LogSession(ctx, p.id, AuditTokenRefresh)

	return s.session(p, accessToken, refreshToken), nil
}

// loadPrincipal re-reads a principal so that deactivated administrators and
// residents who are no longer approved cannot refresh
func (s *AuthService) loadPrincipal(ctx context.Context, id string) (*principal, error) {
	admin, err := s.adminRepo.GetByID(ctx, id)
	if err == nil {
		if !admin.IsActive {
			return nil, &AuthError{Message: "account is inactive"}
		}
		return adminPrincipal(admin), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &AuthError{Message: "account not found"}
		}
		return nil, err
	}
	if !user.IsApproved() {
		return nil, &AuthError{Message: "account is not approved"}
	}

	return residentPrincipal(user), nil
}

// Logout revokes the caller's refresh token. Logging out twice, or with a
// token that was never stored, is not an error.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor, refreshToken string) error {
	stored, err := s.refreshTokenRepo.Get(ctx, refreshToken)
	switch {
	case errors.Is(err, database.ErrNotFound):
		s.audit.LogSession(ctx, actor.ID, AuditLogout)
		return nil
	case err != nil:
		return err
	case stored.PrincipalID != actor.ID:
		return &ForbiddenError{Message: "refresh token belongs to another account"}
	}

	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	s.audit.LogSession(ctx, actor.ID, AuditLogout)
	return nil
}

// Me returns the stored record of the authenticated principal
func (s *AuthService) Me(ctx context.Context, actor models.Actor) (interface{}, error) {
	if actor.IsAdmin() {
		admin, err := s.adminRepo.GetByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, &NotFoundError{Entity: "admin user", ID: actor.ID}
			}
			return nil, err
		}
		return admin, nil
	}

	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "user", ID: actor.ID}
		}
		return nil, err
	}
	return user, nil
}

// CreateAdmin creates a new active administrator
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, fullName, flatNumber string) (*models.AdminUser, error) {
	email = validator.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return nil, newValidationError(map[string]string{"email": "must be a valid email address"})
	}
	if fields := adminPasswordProblems(password); fields != nil {
		return nil, newValidationError(fields)
	}

	hashedPassword, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	admin := &models.AdminUser{
		Email:        email,
		PasswordHash: hashedPassword,
		FullName:     fullName,
		FlatNumber:   models.NewNullString(flatNumber),
		IsActive:     true,
	}

	if err := s.adminRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, &ConflictError{Message: "an administrator with this email already exists"}
		}
		return nil, err
	}

	return admin, nil
}

// ResetAdminPassword sets a new password for the administrator and revokes
// every refresh token issued to them
func (s *AuthService) ResetAdminPassword(ctx context.Context, email, password string) (*models.AdminUser, error) {
	if fields := adminPasswordProblems(password); fields != nil {
		return nil, newValidationError(fields)
	}

	email = validator.NormalizeEmail(email)
	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "admin user", ID: email}
		}
		return nil, err
	}

	hashedPassword, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	if err := s.adminRepo.UpdatePassword(ctx, admin.ID, hashedPassword); err != nil {
		return nil, err
	}

	if err := s.refreshTokenRepo.RevokeAllForPrincipal(ctx, admin.ID); err != nil {
		return nil, err
	}

	s.logger.WithField("admin_id", admin.ID).Info("Administrator password reset")
	return admin, nil
}

// ListAdmins returns every administrator, newest first
func (s *AuthService) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	return s.adminRepo.List(ctx)
}
