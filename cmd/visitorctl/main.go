// Command visitorctl runs maintenance tasks against the Society Gate database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd := &cobra.Command{
		Use:          "visitorctl",
		Short:        "Society Gate maintenance tool",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("driver", envOr("DATABASE_DRIVER", "postgres"), "database driver: postgres or sqlite3")
	rootCmd.PersistentFlags().String("database-url", os.Getenv("DATABASE_URL"), "database DSN (overrides DATABASE_URL)")

	rootCmd.AddCommand(
		migrateCmd(logger),
		seedCmd(logger),
		createAdminCmd(logger),
		resetAdminPasswordCmd(logger),
		listAdminsCmd(logger),
		cleanupCmd(logger),
		secretsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
