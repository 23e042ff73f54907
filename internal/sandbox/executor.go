package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/exam-api/pkg/monitoring"
)

// Options параметры исполнителя песочницы
type Options struct {
	Timeout         time.Duration
	MaxRows         int
	MaxConcurrent   int64
	ForbiddenTables []string
}

// Executor выполняет один запрос только для чтения на временных данных.
// Каждый вызов Run работает в своей транзакции, которая всегда откатывается.
type Executor struct {
	db        *sql.DB
	dialect   Dialect
	timeout   time.Duration
	maxRows   int
	forbidden []string
	sem       *semaphore.Weighted
	log       *zap.Logger
}

// NewExecutor создает исполнитель песочницы
func NewExecutor(db *sql.DB, dialect Dialect, opts Options, log *zap.Logger) *Executor {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Executor{
		db:        db,
		dialect:   dialect,
		timeout:   opts.Timeout,
		maxRows:   opts.MaxRows,
		forbidden: opts.ForbiddenTables,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		log:       log.Named("sandbox"),
	}
}

// Run проверяет запрос, поднимает схему из setupScript во временных таблицах,
// выполняет запрос и откатывает все изменения.
// Ошибки проверки оборачивают ErrDangerousStatement / ErrForbiddenTable / ErrValidation,
// ошибки выполнения возвращаются как *QueryError.
func (e *Executor) Run(ctx context.Context, setupScript, query string) (*ResultSet, error) {
	runID := uuid.NewString()
	start := time.Now()
	rs, err := e.run(ctx, setupScript, query)
	elapsed := time.Since(start)
	monitoring.SandboxDuration.Observe(elapsed.Seconds())

	outcome := "ok"
	var qErr *QueryError
	switch {
	case err == nil:
	case errors.As(err, &qErr):
		outcome = "query_error"
	default:
		outcome = "rejected"
	}
	monitoring.SandboxRuns.WithLabelValues(outcome).Inc()
	e.log.Debug("sandbox run finished",
		zap.String("run_id", runID),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
	return rs, err
}

func (e *Executor) run(ctx context.Context, setupScript, query string) (*ResultSet, error) {
	if err := ValidateQuery(query, e.forbidden); err != nil {
		return nil, err
	}
	setup, err := parseSetup(setupScript, e.forbidden)
	if err != nil {
		return nil, err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(runCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sandbox transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.log.Warn("sandbox rollback failed", zap.Error(rbErr))
		}
	}()

	if err := e.dialect.Prepare(runCtx, tx, e.timeout); err != nil {
		return nil, fmt.Errorf("prepare sandbox session: %w", err)
	}

	for _, stmt := range materialize(e.dialect, setup) {
		if _, err := tx.ExecContext(runCtx, stmt); err != nil {
			return nil, e.queryError(runCtx, "schema setup failed: ", err)
		}
	}

	rows, err := tx.QueryContext(runCtx, query)
	if err != nil {
		return nil, e.queryError(runCtx, "", err)
	}
	defer rows.Close()

	rs, err := scanRows(rows, e.maxRows)
	if err != nil {
		return nil, e.queryError(runCtx, "", err)
	}
	return rs, nil
}

func (e *Executor) queryError(ctx context.Context, prefix string, err error) error {
	var pgErr *pgconn.PgError
	// 57014 query_canceled: сработал statement_timeout
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &pgErr) && pgErr.Code == "57014") {
		return &QueryError{Message: fmt.Sprintf("query exceeded the %s time limit", e.timeout), Timeout: true}
	}
	return &QueryError{Message: prefix + err.Error()}
}
