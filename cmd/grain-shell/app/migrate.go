package app

import (
	"bufio"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grain-editor/grain-shell/database"
	"github.com/grain-editor/grain-shell/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long: `Manage the schema of the sqlite and database storage types. Stores apply
pending migrations when they open, so 'up' is only needed to prepare a
database ahead of time. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert database migrations",
	Long: `Revert the given number of migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Revert the latest migration
  grain-shell migrate down --num-steps 1 --yes`,
	RunE: runMigrateDown,
}

func init() {
	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	migrateDownCmd.Flags().UintP("num-steps", "n", 1, "Number of steps to revert")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrateUp(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newMigrator(&cfg.Storage)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	slog.Info("Applying database migrations...", "storage", cfg.Storage.GetType())
	return database.MigrateUp(m)
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps == 0 || numSteps > math.MaxInt32 {
		return fmt.Errorf("num-steps must be between 1 and %d", math.MaxInt32)
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if !yes {
		if !isInteractive(cmd) {
			return fmt.Errorf("refusing to revert migrations without --yes when stdin is not a terminal")
		}
		prompt := fmt.Sprintf("WARNING: This will revert %d migration(s) and may result in data loss. Continue?", numSteps)
		if !confirm(cmd, prompt) {
			return fmt.Errorf("migration cancelled by user")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newMigrator(&cfg.Storage)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	return database.MigrateDown(m, int(numSteps)) // #nosec G115 -- bounded above
}

// newMigrator opens the migrator matching the configured storage type
func newMigrator(cfg *config.StorageConfig) (database.Migrator, error) {
	switch cfg.GetType() {
	case config.StorageTypeSQLite:
		path := cfg.GetSQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		return database.NewFromConnectionString(database.DialectSQLite, database.SQLiteURL(path))
	case config.StorageTypeDatabase:
		db := cfg.Database
		if db == nil {
			return nil, fmt.Errorf("database configuration is required")
		}
		password, err := db.GetPassword()
		if err != nil {
			return nil, err
		}
		connString := database.PostgresURL(db.Host, db.Port, db.User, password, db.Database, db.GetSSLMode())
		return database.NewFromConnectionString(database.DialectPostgres, connString)
	default:
		return nil, fmt.Errorf("storage type '%s' has no database schema", cfg.GetType())
	}
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		slog.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
	}
}

// isInteractive reports whether the command reads from a terminal
func isInteractive(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}

func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Printf("%s (yes/no): ", prompt)
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y"
}
