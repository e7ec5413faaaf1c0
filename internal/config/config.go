package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig

	// Gate pass generation (OpenAI) configuration
	AI AIConfig

	// Share message delivery configuration
	Notify NotifyConfig

	// Domain event configuration
	Events EventsConfig

	// Maintenance job configuration
	Cron CronConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver             string // "postgres" or "sqlite3"
	URL                string // DSN for postgres, file path for sqlite3
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost          int
	EnableRequestLog    bool
	EnableAuditLog      bool
	MaxFailedLogins     int
	FailedLoginWindow   time.Duration
	MaxFailedLoginsByIP int
}

// AIConfig holds the generative gate pass configuration.
// An empty APIKey selects the local generator.
type AIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	PassAttempts int // generate/validate attempts per pre-approval
}

// NotifyConfig holds share message transport configuration
type NotifyConfig struct {
	Mode              string // "dev" logs only, "production" delivers
	OrganizationName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromPhone   string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridSandbox   bool
}

// EventsConfig holds NATS configuration. An empty URL logs events instead.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// CronConfig holds maintenance job schedules (robfig/cron spec with seconds)
type CronConfig struct {
	Enabled            bool
	TokenCleanupSpec   string
	AttemptCleanupSpec string
	AttemptRetention   time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:             getEnv("DATABASE_DRIVER", "postgres"),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:          getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog:    getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:      getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
			MaxFailedLogins:     getEnvAsInt("LOGIN_MAX_FAILED_PER_EMAIL", 5),
			MaxFailedLoginsByIP: getEnvAsInt("LOGIN_MAX_FAILED_PER_IP", 20),
			FailedLoginWindow:   getEnvAsDuration("LOGIN_FAILED_WINDOW", 15*time.Minute),
		},
		AI: AIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:      getEnvAsDuration("OPENAI_TIMEOUT", 20*time.Second),
			MaxRetries:   getEnvAsInt("OPENAI_MAX_RETRIES", 2),
			PassAttempts: getEnvAsInt("GATE_PASS_MAX_ATTEMPTS", 3),
		},
		Notify: NotifyConfig{
			Mode:              getEnv("NOTIFY_MODE", "dev"),
			OrganizationName:  getEnv("ORGANIZATION_NAME", "Society Gate"),
			TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromPhone:   getEnv("TWILIO_FROM_PHONE", ""),
			SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
			SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
			SendGridSandbox:   getEnvAsBool("SENDGRID_SANDBOX_MODE", false),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("EVENTS_SUBJECT_PREFIX", "society"),
		},
		Cron: CronConfig{
			Enabled:            getEnvAsBool("CRON_ENABLED", true),
			TokenCleanupSpec:   getEnv("CRON_TOKEN_CLEANUP", "0 0 * * * *"),
			AttemptCleanupSpec: getEnv("CRON_LOGIN_ATTEMPT_CLEANUP", "0 30 * * * *"),
			AttemptRetention:   getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 24*time.Hour),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "sqlite3":
		if c.Database.URL == "" {
			c.Database.URL = "society.db"
		}
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres' or 'sqlite3')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.AI.PassAttempts < 1 {
		return fmt.Errorf("GATE_PASS_MAX_ATTEMPTS must be at least 1")
	}

	// Transport credentials are only required when messages are really delivered
	if c.Notify.Mode == "production" {
		if c.Notify.TwilioAccountSID == "" && c.Notify.SendGridAPIKey == "" {
			return fmt.Errorf("NOTIFY_MODE=production requires Twilio or SendGrid credentials")
		}

		if c.Notify.TwilioAccountSID != "" {
			if c.Notify.TwilioAuthToken == "" {
				return fmt.Errorf("TWILIO_AUTH_TOKEN is required when TWILIO_ACCOUNT_SID is set")
			}
			if c.Notify.TwilioFromPhone == "" {
				return fmt.Errorf("TWILIO_FROM_PHONE is required when TWILIO_ACCOUNT_SID is set")
			}
		}

		if c.Notify.SendGridAPIKey != "" && c.Notify.SendGridFromEmail == "" {
			return fmt.Errorf("SENDGRID_FROM_EMAIL is required when SENDGRID_API_KEY is set")
		}
	} else if c.Notify.Mode != "dev" {
		return fmt.Errorf("invalid NOTIFY_MODE: %s (must be 'dev' or 'production')", c.Notify.Mode)
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("90s", "15m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
