package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/metrics"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/pkg/gatepass"
	"github.com/societygate/gate-backend/pkg/jwt"
	"github.com/societygate/gate-backend/pkg/notify"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "secret123"

type published struct {
	subject string
	data    interface{}
}

// recordingPublisher keeps every event in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

func (p *recordingPublisher) payloads(t *testing.T) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := ""
	for _, e := range p.events {
		b, err := json.Marshal(e.data)
		require.NoError(t, err)
		all += string(b)
	}
	return all
}

// fakeClient returns scripted gate passes and messages
type fakeClient struct {
	mu         sync.Mutex
	passes     []*gatepass.PassContent // returned in order, the last one repeats
	passErr    error
	block      bool // wait for the context to end
	passCalls  int
	passReqs   []gatepass.PassRequest
	message    string
	formatErr  error
	shareCalls []gatepass.ShareRequest
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) GeneratePass(ctx context.Context, req gatepass.PassRequest) (*gatepass.PassContent, error) {
	f.mu.Lock()
	f.passCalls++
	f.passReqs = append(f.passReqs, req)
	idx := f.passCalls - 1
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.passErr != nil {
		return nil, f.passErr
	}
	if idx >= len(f.passes) {
		idx = len(f.passes) - 1
	}
	content := *f.passes[idx]
	return &content, nil
}

func (f *fakeClient) FormatShareMessage(ctx context.Context, req gatepass.ShareRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shareCalls = append(f.shareCalls, req)
	if f.formatErr != nil {
		return "", f.formatErr
	}
	return f.message, nil
}

// fakeTransport records deliveries
type fakeTransport struct {
	name string
	err  error
	sent []notify.Delivery
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(ctx context.Context, d notify.Delivery) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, d)
	return "msg-1", nil
}

type testEnv struct {
	db        *database.SQLDB
	users     *database.UserRepository
	visits    *database.VisitRepository
	admins    *database.AdminUserRepository
	tokens    *database.RefreshTokenRepository
	jwt       *jwt.Service
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	hook      *test.Hook
	publisher *recordingPublisher
	client    *fakeClient
	email     *fakeTransport
	sms       *fakeTransport

	audit        *AuditService
	rateLimiter  *RateLimitService
	auth         *AuthService
	registration *RegistrationService
	visitSvc     *VisitService
	gatePass     *GatePassService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLiteMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		db:        db,
		users:     database.NewUserRepository(db),
		visits:    database.NewVisitRepository(db),
		admins:    database.NewAdminUserRepository(db),
		tokens:    database.NewRefreshTokenRepository(db),
		jwt:       jwt.NewService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour),
		metrics:   metrics.New(),
		logger:    logger,
		hook:      hook,
		publisher: &recordingPublisher{},
		client: &fakeClient{
			passes: []*gatepass.PassContent{{
				DisplayInfo:  []string{"Welcome to Green Meadows"},
				QRData:       "ABCD1234",
				Instructions: "Show this pass at the main gate.",
			}},
			message: "Subject: Your gate pass\n\nDear guest, your code is ABCD1234.",
		},
		email: &fakeTransport{name: "sendgrid"},
		sms:   &fakeTransport{name: "twilio"},
	}

	env.audit = NewAuditService(db, logger, true)
	env.rateLimiter = NewRateLimitService(db, RateLimitConfig{
		MaxEmailFailures: 3,
		MaxIPFailures:    10,
		Window:           15 * time.Minute,
	})
	env.auth = NewAuthService(env.admins, env.users, env.tokens, env.jwt, env.rateLimiter,
		env.audit, env.metrics, logger, bcrypt.MinCost)
	env.registration = NewRegistrationService(env.users, env.admins, env.audit, env.publisher, env.metrics, logger, bcrypt.MinCost)
	env.visitSvc = NewVisitService(env.visits, env.audit, env.publisher, env.metrics, logger)

	router := notify.NewRouter().
		Handle(notify.MethodEmail, env.email).
		Handle(notify.MethodSMS, env.sms)
	env.gatePass = NewGatePassService(env.users, env.visits, env.client, router,
		env.audit, env.publisher, env.metrics, logger,
		GatePassConfig{Timeout: time.Second, MaxAttempts: 3})

	return env
}

func (env *testEnv) createResident(t *testing.T, email, flat string, role models.UserRole, status models.UserStatus) *models.User {
	t.Helper()
	hash, err := HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Name:         "Resident " + flat,
		Email:        email,
		FlatNumber:   flat,
		Role:         role,
		Status:       status,
		PasswordHash: hash,
	}
	require.NoError(t, env.users.Create(context.Background(), user))
	return user
}

func (env *testEnv) createAdmin(t *testing.T, email string, active bool) *models.AdminUser {
	t.Helper()
	hash, err := HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	admin := &models.AdminUser{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Gate Office",
		IsActive:     active,
	}
	require.NoError(t, env.admins.Create(context.Background(), admin))
	return admin
}

func adminActor(admin *models.AdminUser) models.Actor {
	return models.Actor{ID: admin.ID, Email: admin.Email, Roles: []string{models.PrincipalAdmin}}
}

func residentActor(user *models.User) models.Actor {
	return models.Actor{
		ID:         user.ID,
		Email:      user.Email,
		Roles:      []string{models.PrincipalResident, string(user.Role)},
		FlatNumber: user.FlatNumber,
	}
}

// counterValue sums a counter family, optionally filtered by one label value
func counterValue(t *testing.T, m *metrics.Metrics, name, labelValue string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelValue != "" {
				found := false
				for _, lp := range metric.GetLabel() {
					if lp.GetValue() == labelValue {
						found = true
					}
				}
				if !found {
					continue
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
