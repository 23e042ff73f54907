package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// AnswerRepo реализует repository.AnswerRepository
type AnswerRepo struct {
	db *gorm.DB
}

// NewAnswerRepo создает новый репозиторий ответов
func NewAnswerRepo(db *gorm.DB) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// Upsert вставляет ответ или перезаписывает его по уникальному ключу (attempt_id, exam_question_id).
// Параллельные вызовы дают одну строку, побеждает последняя зафиксированная запись.
func (r *AnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *entity.StudentAnswer) error {
	return conn(ctx, r.db, tx).
		Omit("ExamQuestion", "SelectedOption").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "exam_question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option_id", "answer_text", "answered_at"}),
		}).
		Create(answer).Error
}

// ListByAttempt возвращает ответы попытки вместе с вопросами
func (r *AnswerRepo) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]entity.StudentAnswer, error) {
	var answers []entity.StudentAnswer
	err := conn(ctx, r.db, tx).
		Preload("ExamQuestion.Question.Options").
		Preload("SelectedOption").
		Where("attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&answers).Error
	return answers, err
}
