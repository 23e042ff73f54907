package repository

import (
	"context"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"gorm.io/gorm"
)

// ExamRepository определяет методы чтения экзаменов.
// Создание и редактирование экзаменов выполняет внешний сервис.
type ExamRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.Exam, error)
}

// ExamQuestionRepository определяет методы чтения вопросов экзамена
type ExamQuestionRepository interface {
	// FindInExam возвращает вопрос экзамена по его ID, только если он относится к examID
	FindInExam(ctx context.Context, tx *gorm.DB, examID, examQuestionID uint) (*entity.ExamQuestion, error)
	// FindByQuestionID возвращает все строки экзамена, ссылающиеся на вопрос банка questionID
	FindByQuestionID(ctx context.Context, tx *gorm.DB, examID, questionID uint) ([]entity.ExamQuestion, error)
	// ListByExam возвращает вопросы экзамена по порядку вместе с вопросами и вариантами
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]entity.ExamQuestion, error)
}
