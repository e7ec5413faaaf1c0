package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/config"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/events"
	"github.com/societygate/gate-backend/internal/handlers"
	"github.com/societygate/gate-backend/internal/metrics"
	"github.com/societygate/gate-backend/internal/middleware"
	"github.com/societygate/gate-backend/internal/services"
	"github.com/societygate/gate-backend/pkg/gatepass"
	"github.com/societygate/gate-backend/pkg/jwt"
	"github.com/societygate/gate-backend/pkg/notify"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Society Gate backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(startupCtx, db); err != nil {
		cancelStartup()
		logger.Fatalf("Failed to apply migrations: %v", err)
	}
	cancelStartup()
	logger.Info("Database connection established")

	// Initialize services
	logger.Info("Initializing services...")
	m := metrics.New()
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	userRepository := database.NewUserRepository(db)
	visitRepository := database.NewVisitRepository(db)
	adminUserRepository := database.NewAdminUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)

	auditService := services.NewAuditService(db, logger, cfg.Security.EnableAuditLog)
	rateLimitService := services.NewRateLimitService(db, services.RateLimitConfig{
		MaxEmailFailures: cfg.Security.MaxFailedLogins,
		MaxIPFailures:    cfg.Security.MaxFailedLoginsByIP,
		Window:           cfg.Security.FailedLoginWindow,
	})
	authService := services.NewAuthService(
		adminUserRepository,
		userRepository,
		refreshTokenRepository,
		jwtService,
		rateLimitService,
		auditService,
		m,
		logger,
		cfg.Security.BcryptCost,
	)
	registrationService := services.NewRegistrationService(userRepository, adminUserRepository, auditService, publisher, m, logger, cfg.Security.BcryptCost)
	visitService := services.NewVisitService(visitRepository, auditService, publisher, m, logger)
	gatePassService := services.NewGatePassService(
		userRepository,
		visitRepository,
		newGatePassClient(cfg, logger),
		newNotifier(cfg, logger),
		auditService,
		publisher,
		m,
		logger,
		services.GatePassConfig{Timeout: cfg.AI.Timeout, MaxAttempts: cfg.AI.PassAttempts},
	)

	if cfg.Cron.Enabled {
		cronService := services.NewCronService(refreshTokenRepository, rateLimitService, logger, services.CronConfig{
			TokenCleanupSpec:   cfg.Cron.TokenCleanupSpec,
			AttemptCleanupSpec: cfg.Cron.AttemptCleanupSpec,
			AttemptRetention:   cfg.Cron.AttemptRetention,
		})
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		defer cronService.Stop()
		logger.Info("Cron service started")
	}

	logger.Info("Services initialized")

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(m.Middleware())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowMethods = cfg.CORS.AllowedMethods
	corsConfig.AllowHeaders = cfg.CORS.AllowedHeaders
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	if len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*" {
		// wildcard origins cannot be combined with credentials
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(m.Handler()))
	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:       handlers.NewAuthHandler(authService, registrationService, logger),
		Admin:      handlers.NewAdminHandler(registrationService, logger),
		Visits:     handlers.NewVisitHandler(visitService, logger),
		GatePasses: handlers.NewGatePassHandler(gatePassService, logger),
		Health:     handlers.NewHealthHandler(db, version),
	}, jwtService)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generator calls can take a while
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with 30 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// newPublisher connects to NATS when configured and falls back to logging events
func newPublisher(cfg *config.Config, logger *logrus.Logger) events.Publisher {
	if cfg.Events.NATSURL == "" {
		logger.Info("NATS_URL not set, domain events will only be logged")
		return events.NewLogPublisher(logger, cfg.Events.SubjectPrefix)
	}

	publisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to connect to NATS, domain events will only be logged")
		return events.NewLogPublisher(logger, cfg.Events.SubjectPrefix)
	}

	logger.WithField("url", cfg.Events.NATSURL).Info("Publishing domain events to NATS")
	return publisher
}

// newGatePassClient uses OpenAI when an API key is configured
func newGatePassClient(cfg *config.Config, logger *logrus.Logger) gatepass.Client {
	if cfg.AI.APIKey == "" {
		logger.Info("OPENAI_API_KEY not set, using the local gate pass generator")
		return gatepass.NewLocalGenerator(cfg.Notify.OrganizationName)
	}

	client, err := gatepass.NewOpenAIClient(gatepass.OpenAIConfig{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout,
		MaxRetries: cfg.AI.MaxRetries,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize OpenAI client: %v", err)
	}

	logger.WithField("model", cfg.AI.Model).Info("Gate passes generated with OpenAI")
	return client
}

// newNotifier routes shares to Twilio and SendGrid in production and to the log otherwise
func newNotifier(cfg *config.Config, logger *logrus.Logger) *notify.Router {
	router := notify.NewRouter()

	if cfg.Notify.Mode != "production" {
		logger.Info("Notifications in development mode (no actual messages will be sent)")
		dev := notify.NewDevTransport(logger)
		return router.Handle(notify.MethodEmail, dev).Handle(notify.MethodSMS, dev)
	}

	if cfg.Notify.TwilioAccountSID != "" {
		router.Handle(notify.MethodSMS, notify.NewTwilioSMS(
			cfg.Notify.TwilioAccountSID,
			cfg.Notify.TwilioAuthToken,
			cfg.Notify.TwilioFromPhone,
		))
		logger.Info("SMS sharing via Twilio")
	}

	if cfg.Notify.SendGridAPIKey != "" {
		router.Handle(notify.MethodEmail, notify.NewSendGridEmail(
			cfg.Notify.SendGridAPIKey,
			cfg.Notify.SendGridFromEmail,
			cfg.Notify.OrganizationName,
			cfg.Notify.SendGridSandbox,
		))
		logger.Info("Email sharing via SendGrid")
	}

	return router
}
