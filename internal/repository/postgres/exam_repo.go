package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// ExamRepo реализует repository.ExamRepository
type ExamRepo struct {
	db *gorm.DB
}

// NewExamRepo создает новый репозиторий экзаменов
func NewExamRepo(db *gorm.DB) *ExamRepo {
	return &ExamRepo{db: db}
}

// GetByID возвращает экзамен по ID
func (r *ExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.Exam, error) {
	var exam entity.Exam
	if err := conn(ctx, r.db, tx).First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exam #%d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &exam, nil
}

// ExamQuestionRepo реализует repository.ExamQuestionRepository
type ExamQuestionRepo struct {
	db *gorm.DB
}

// NewExamQuestionRepo создает новый репозиторий вопросов экзамена
func NewExamQuestionRepo(db *gorm.DB) *ExamQuestionRepo {
	return &ExamQuestionRepo{db: db}
}

// FindInExam возвращает вопрос экзамена, только если он принадлежит examID
func (r *ExamQuestionRepo) FindInExam(ctx context.Context, tx *gorm.DB, examID, examQuestionID uint) (*entity.ExamQuestion, error) {
	var eq entity.ExamQuestion
	err := conn(ctx, r.db, tx).
		Preload("Question.Options").
		Where("id = ? AND exam_id = ?", examQuestionID, examID).
		First(&eq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &eq, nil
}

// FindByQuestionID возвращает строки exam_questions экзамена для вопроса банка
func (r *ExamQuestionRepo) FindByQuestionID(ctx context.Context, tx *gorm.DB, examID, questionID uint) ([]entity.ExamQuestion, error) {
	var eqs []entity.ExamQuestion
	err := conn(ctx, r.db, tx).
		Preload("Question.Options").
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Find(&eqs).Error
	return eqs, err
}

// ListByExam возвращает все вопросы экзамена в порядке показа
func (r *ExamQuestionRepo) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]entity.ExamQuestion, error) {
	var eqs []entity.ExamQuestion
	err := conn(ctx, r.db, tx).
		Preload("Question.Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("exam_id = ?", examID).
		Order("question_order ASC, id ASC").
		Find(&eqs).Error
	return eqs, err
}
