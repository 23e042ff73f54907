package repository

import (
	"context"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"gorm.io/gorm"
)

// ResultRepository определяет методы для работы с результатами попыток
type ResultRepository interface {
	// Create сохраняет результат. Возвращает apperrors.ErrDuplicateResult, если он уже есть.
	Create(ctx context.Context, tx *gorm.DB, result *entity.ExamResult) error
	GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*entity.ExamResult, error)
	DeleteByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) error
	ListByAttemptIDs(ctx context.Context, attemptIDs []uint) ([]entity.ExamResult, error)
}
