package repository

import (
	"context"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"gorm.io/gorm"
)

// AnswerRepository определяет методы для работы с ответами студентов
type AnswerRepository interface {
	// Upsert вставляет ответ или перезаписывает существующий по (attempt_id, exam_question_id)
	Upsert(ctx context.Context, tx *gorm.DB, answer *entity.StudentAnswer) error
	// ListByAttempt возвращает ответы попытки с вопросами и выбранными вариантами
	ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]entity.StudentAnswer, error)
}
