package cli

import (
	"errors"
	"fmt"
	"strconv"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/config"
	"github.com/yourusername/exam-api/pkg/database"
	"github.com/yourusername/exam-api/pkg/logger"
)

// NewMigrateCmd управляет SQL-миграциями схемы
func NewMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(*configPath, func(m *migrateV4.Migrate, log *zap.Logger) error {
				err := m.Up()
				if errors.Is(err, migrateV4.ErrNoChange) {
					log.Info("database schema is up to date")
					return nil
				}
				return err
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(*configPath, func(m *migrateV4.Migrate, log *zap.Logger) error {
				var err error
				if steps > 0 {
					err = m.Steps(-steps)
				} else {
					err = m.Down()
				}
				if errors.Is(err, migrateV4.ErrNoChange) {
					log.Info("nothing to roll back")
					return nil
				}
				return err
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set schema version without running migrations (clears dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(*configPath, func(m *migrateV4.Migrate, log *zap.Logger) error {
				return m.Force(version)
			})
		},
	})

	return cmd
}

func withMigrator(configPath string, fn func(m *migrateV4.Migrate, log *zap.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), false)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	m, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		return err
	}
	if err := fn(m, log); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrateV4.ErrNilVersion) {
		return err
	}
	log.Info("migration finished", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
