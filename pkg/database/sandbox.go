package database

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/yourusername/exam-api/internal/config"
)

// OpenSandboxDB открывает пул соединений для песочницы SQL-запросов.
// postgres без DSN использует пул основной БД: таблицы песочницы временные и видны только своей сессии.
func OpenSandboxDB(cfg config.SandboxConfig, mainDB *gorm.DB) (*sql.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite sandbox: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxConcurrent)
		return db, nil
	case "postgres":
		if cfg.DSN == "" {
			return GetSQLDB(mainDB)
		}
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres sandbox: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxConcurrent)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres sandbox: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported sandbox driver: %q", cfg.Driver)
	}
}
