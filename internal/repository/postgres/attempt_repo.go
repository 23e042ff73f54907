package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Create создает попытку
func (r *AttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *entity.ExamAttempt) error {
	return conn(ctx, r.db, tx).Create(attempt).Error
}

// GetByID возвращает попытку по ID
func (r *AttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.ExamAttempt, error) {
	return r.LockByID(ctx, tx, id, repository.LockNone)
}

// LockByID читает попытку с блокировкой строки
func (r *AttemptRepo) LockByID(ctx context.Context, tx *gorm.DB, id uint, mode repository.LockMode) (*entity.ExamAttempt, error) {
	if mode != repository.LockNone && tx == nil {
		return nil, fmt.Errorf("row lock on attempt #%d requires a transaction", id)
	}
	var attempt entity.ExamAttempt
	err := withLock(conn(ctx, r.db, tx), mode).First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt #%d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &attempt, nil
}

// LatestByExamAndStudent возвращает последнюю попытку студента
func (r *AttemptRepo) LatestByExamAndStudent(ctx context.Context, tx *gorm.DB, examID, studentID uint) (*entity.ExamAttempt, error) {
	var attempt entity.ExamAttempt
	err := conn(ctx, r.db, tx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Order("id DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// LockExamStudent берет транзакционную advisory-блокировку на пару (exam, student).
// Уникального ограничения на пару нет, поэтому правило "одна попытка" держится на этой блокировке.
func (r *AttemptRepo) LockExamStudent(ctx context.Context, tx *gorm.DB, examID, studentID uint) error {
	if tx == nil {
		return fmt.Errorf("advisory lock requires a transaction")
	}
	// Ключ bigint из хеша пары: идентификаторы не усекаются, коллизия лишь сериализует лишний старт
	return tx.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(format('exam_attempt:%s:%s', ?::bigint, ?::bigint), 0))",
			uint64(examID), uint64(studentID)).Error
}

// TransitionStatus атомарно переводит попытку из from в to
func (r *AttemptRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to entity.AttemptStatus, submittedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if submittedAt != nil {
		updates["submitted_at"] = *submittedAt
	} else {
		updates["submitted_at"] = gorm.Expr("NULL")
	}

	result := conn(ctx, r.db, tx).Model(&entity.ExamAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("transition attempt #%d %s->%s failed: %w", id, from, to, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: attempt #%d is not %s", apperrors.ErrInvalidState, id, from)
	}
	return nil
}

// ListExpiredInProgress возвращает открытые попытки, у которых вышло время вместе с grace
func (r *AttemptRepo) ListExpiredInProgress(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]entity.ExamAttempt, error) {
	var attempts []entity.ExamAttempt
	err := r.db.WithContext(ctx).
		Select("exam_attempts.*").
		Joins("JOIN exams ON exams.id = exam_attempts.exam_id").
		Where("exam_attempts.status = ?", entity.AttemptStatusInProgress).
		Where("exam_attempts.started_at + make_interval(mins => exams.duration_minutes) + make_interval(secs => ?) < ?",
			grace.Seconds(), now).
		Order("exam_attempts.started_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// ListByExam возвращает все попытки экзамена
func (r *AttemptRepo) ListByExam(ctx context.Context, examID uint) ([]entity.ExamAttempt, error) {
	var attempts []entity.ExamAttempt
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("id ASC").
		Find(&attempts).Error
	return attempts, err
}
