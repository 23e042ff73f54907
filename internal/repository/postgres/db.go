package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/exam-api/internal/domain/repository"
)

// TxManager реализует repository.Transactor поверх gorm
type TxManager struct {
	db *gorm.DB
}

// NewTxManager создает менеджер транзакций
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTransaction выполняет fn в транзакции gorm
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

// conn возвращает tx, если он передан, иначе базовое подключение
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// withLock добавляет FOR UPDATE / FOR SHARE к запросу
func withLock(q *gorm.DB, mode repository.LockMode) *gorm.DB {
	switch mode {
	case repository.LockUpdate:
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	case repository.LockShare:
		return q.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return q
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
