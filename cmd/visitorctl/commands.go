package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/societygate/gate-backend/internal/config"
	"github.com/societygate/gate-backend/internal/database"
	"github.com/societygate/gate-backend/internal/metrics"
	"github.com/societygate/gate-backend/internal/seed"
	"github.com/societygate/gate-backend/internal/services"
	"github.com/societygate/gate-backend/internal/utils"
)

const commandTimeout = 2 * time.Minute

// openDB connects with the persistent flags and applies pending migrations
func openDB(cmd *cobra.Command) (*database.SQLDB, error) {
	driver, _ := cmd.Flags().GetString("driver")
	url, _ := cmd.Flags().GetString("database-url")

	cfg := config.DatabaseConfig{
		Driver:             driver,
		URL:                url,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	}
	if cfg.Driver == "sqlite3" && cfg.URL == "" {
		cfg.URL = "society.db"
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(cmd.Context(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return db, nil
}

func migrateCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := database.SchemaVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			logger.WithField("version", version).Info("Schema is up to date")
			return nil
		},
	}
}

func seedCmd(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demonstration residents, an administrator and sample visits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("bcrypt-cost")

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			result, err := seed.Run(ctx, db, cost)
			if errors.Is(err, seed.ErrAlreadySeeded) {
				logger.Warn("Seed data already present, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"admins":    result.Admins,
				"residents": result.Residents,
				"visits":    result.Visits,
			}).Infof("Seeded database; every account uses the password %q", seed.DefaultPassword)
			return nil
		},
	}
	cmd.Flags().Int("bcrypt-cost", 12, "bcrypt cost for seeded password hashes")
	return cmd
}

func createAdminCmd(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			flat, _ := cmd.Flags().GetString("flat")
			password, _ := cmd.Flags().GetString("password")
			cost, _ := cmd.Flags().GetInt("bcrypt-cost")

			generated := false
			if password == "" {
				var err error
				if password, err = utils.GeneratePassword(16); err != nil {
					return err
				}
				generated = true
			}

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			admin, err := adminAuthService(db, logger, cost).CreateAdmin(cmd.Context(), email, password, name, flat)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{"admin_id": admin.ID, "email": admin.Email}).Info("Administrator created")
			if generated {
				fmt.Printf("Generated password: %s\n", password)
			}
			return nil
		},
	}
	cmd.Flags().String("email", "", "administrator email (required)")
	cmd.Flags().String("name", "Gate Office", "full name")
	cmd.Flags().String("flat", "", "flat number, if the administrator lives in the society")
	cmd.Flags().String("password", "", "password; a random one is generated when empty")
	cmd.Flags().Int("bcrypt-cost", 12, "bcrypt cost")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// adminAuthService builds an AuthService for account maintenance only; it
// never issues tokens, so it carries no JWT service
func adminAuthService(db *database.SQLDB, logger *logrus.Logger, bcryptCost int) *services.AuthService {
	return services.NewAuthService(
		database.NewAdminUserRepository(db),
		database.NewUserRepository(db),
		database.NewRefreshTokenRepository(db),
		nil,
		services.NewRateLimitService(db, services.DefaultRateLimitConfig()),
		services.NewAuditService(db, logger, false),
		metrics.New(),
		logger,
		bcryptCost,
	)
}

func resetAdminPasswordCmd(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-admin-password",
		Short: "Set a new administrator password and sign out every session",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			cost, _ := cmd.Flags().GetInt("bcrypt-cost")

			generated := false
			if password == "" {
				var err error
				if password, err = utils.GeneratePassword(16); err != nil {
					return err
				}
				generated = true
			}

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			admin, err := adminAuthService(db, logger, cost).ResetAdminPassword(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			logger.WithField("admin_id", admin.ID).Info("Password reset, existing sessions revoked")
			if generated {
				fmt.Printf("Generated password: %s\n", password)
			}
			return nil
		},
	}
	cmd.Flags().String("email", "", "administrator email (required)")
	cmd.Flags().String("password", "", "new password; a random one is generated when empty")
	cmd.Flags().Int("bcrypt-cost", 12, "bcrypt cost")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func listAdminsCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "Print every administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			admins, err := adminAuthService(db, logger, 0).ListAdmins(cmd.Context())
			if err != nil {
				return err
			}

			for _, a := range admins {
				lastLogin := "never"
				if a.LastLoginAt.Valid {
					lastLogin = a.LastLoginAt.Time.Format(time.RFC3339)
				}
				fmt.Printf("%-36s  %-32s  active=%-5t  last_login=%s\n", a.ID, a.Email, a.IsActive, lastLogin)
			}
			return nil
		},
	}
}

func cleanupCmd(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired refresh tokens, old login attempts and old audit logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			auditRetention, _ := cmd.Flags().GetDuration("audit-retention")

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			rateLimiter := services.NewRateLimitService(db, services.DefaultRateLimitConfig())
			services.NewCronService(database.NewRefreshTokenRepository(db), rateLimiter, logger, services.CronConfig{
				AttemptRetention: 24 * time.Hour,
			}).RunNow()

			if auditRetention > 0 {
				audit := services.NewAuditService(db, logger, true)
				deleted, err := audit.CleanupOldAuditLogs(cmd.Context(), auditRetention)
				if err != nil {
					return err
				}
				logger.WithField("deleted", deleted).Info("Cleaned up audit logs")
			}
			return nil
		},
	}
	cmd.Flags().Duration("audit-retention", 0, "also delete audit logs older than this (0 keeps them)")
	return cmd
}

func secretsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secrets",
		Short: "Generate JWT_SECRET and JWT_REFRESH_SECRET values",
		RunE: func(cmd *cobra.Command, args []string) error {
			accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
			if err != nil {
				return fmt.Errorf("failed to generate secrets: %w", err)
			}

			fmt.Println("Add these to your .env file:")
			fmt.Println()
			fmt.Printf("JWT_SECRET=%s\n", accessSecret)
			fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)
			fmt.Println()
			fmt.Println("Keep these secrets out of version control.")
			return nil
		},
	}
}
