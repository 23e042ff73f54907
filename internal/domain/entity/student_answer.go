package entity

import (
	"time"
)

// StudentAnswer ответ студента на вопрос экзамена, один на (attempt, exam question)
type StudentAnswer struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	AttemptID        uint            `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"attempt_id"`
	ExamQuestionID   uint            `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"exam_question_id"`
	SelectedOptionID *uint           `json:"selected_option_id,omitempty"`
	AnswerText       string          `gorm:"type:text;not null;default:''" json:"answer_text,omitempty"`
	AnsweredAt       time.Time       `gorm:"not null" json:"answered_at"`
	ExamQuestion     *ExamQuestion   `gorm:"foreignKey:ExamQuestionID" json:"-"`
	SelectedOption   *QuestionOption `gorm:"foreignKey:SelectedOptionID" json:"-"`
}

// TableName определяет имя таблицы для GORM
func (StudentAnswer) TableName() string {
	return "student_answers"
}

// HasSelection проверяет, что выбран вариант ответа
func (a *StudentAnswer) HasSelection() bool {
	return a.SelectedOptionID != nil && *a.SelectedOptionID != 0
}
