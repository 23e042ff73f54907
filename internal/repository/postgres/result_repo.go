package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository
type ResultRepo struct {
	db *gorm.DB
}

// NewResultRepo создает новый репозиторий результатов
func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// Create сохраняет итоговый результат попытки
func (r *ResultRepo) Create(ctx context.Context, tx *gorm.DB, result *entity.ExamResult) error {
	if err := conn(ctx, r.db, tx).Create(result).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: attempt #%d", apperrors.ErrDuplicateResult, result.AttemptID)
		}
		return fmt.Errorf("save result for attempt #%d failed: %w", result.AttemptID, err)
	}
	return nil
}

// GetByAttemptID возвращает результат попытки
func (r *ResultRepo) GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*entity.ExamResult, error) {
	var result entity.ExamResult
	err := conn(ctx, r.db, tx).Where("attempt_id = ?", attemptID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// DeleteByAttemptID удаляет результат попытки (используется при resume)
func (r *ResultRepo) DeleteByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	return conn(ctx, r.db, tx).Where("attempt_id = ?", attemptID).Delete(&entity.ExamResult{}).Error
}

// ListByAttemptIDs возвращает результаты для набора попыток
func (r *ResultRepo) ListByAttemptIDs(ctx context.Context, attemptIDs []uint) ([]entity.ExamResult, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}
	var results []entity.ExamResult
	err := r.db.WithContext(ctx).Where("attempt_id IN ?", attemptIDs).Find(&results).Error
	return results, err
}
