package repository

import (
	"context"
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"gorm.io/gorm"
)

// AttemptRepository определяет методы для работы с попытками
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *entity.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.ExamAttempt, error)
	// LockByID читает попытку с блокировкой строки, tx обязателен для mode != LockNone
	LockByID(ctx context.Context, tx *gorm.DB, id uint, mode LockMode) (*entity.ExamAttempt, error)
	// LatestByExamAndStudent возвращает последнюю попытку студента по экзамену
	LatestByExamAndStudent(ctx context.Context, tx *gorm.DB, examID, studentID uint) (*entity.ExamAttempt, error)
	// LockExamStudent сериализует старт попыток одной пары (экзамен, студент) до конца tx
	LockExamStudent(ctx context.Context, tx *gorm.DB, examID, studentID uint) error
	// TransitionStatus меняет статус, только если текущий равен from.
	// Возвращает apperrors.ErrInvalidState, если строка не изменилась.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to entity.AttemptStatus, submittedAt *time.Time) error
	// ListExpiredInProgress возвращает открытые попытки, у которых истекло время с учетом grace
	ListExpiredInProgress(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]entity.ExamAttempt, error)
	ListByExam(ctx context.Context, examID uint) ([]entity.ExamAttempt, error)
}
