package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Dialect описывает различия движков, на которых выполняется песочница
type Dialect interface {
	Name() string
	// Prepare настраивает транзакцию песочницы перед выполнением скрипта схемы
	Prepare(ctx context.Context, tx *sql.Tx, timeout time.Duration) error
	// DropTempTable возвращает выражение удаления временной таблицы
	DropTempTable(table string) string
}

// DialectFor возвращает диалект по имени драйвера
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported sandbox dialect: %q", driver)
}

// Postgres диалект PostgreSQL: временные таблицы в pg_temp, statement_timeout на транзакцию
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Prepare(ctx context.Context, tx *sql.Tx, timeout time.Duration) error {
	if timeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())); err != nil {
			return err
		}
	}
	// Неполные имена видят только временные таблицы сессии
	_, err := tx.ExecContext(ctx, "SET LOCAL search_path TO pg_temp")
	return err
}

func (Postgres) DropTempTable(table string) string {
	return "DROP TABLE IF EXISTS pg_temp." + table
}

// SQLite диалект для встроенного движка. Таймаут обеспечивается отменой контекста.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Prepare(context.Context, *sql.Tx, time.Duration) error { return nil }

func (SQLite) DropTempTable(table string) string {
	return "DROP TABLE IF EXISTS temp." + table
}
