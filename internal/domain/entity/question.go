package entity

import (
	"time"
)

// QuestionType тип вопроса, определяет стратегию проверки
type QuestionType string

const (
	QuestionTypeMCQ   QuestionType = "mcq"
	QuestionTypeSQL   QuestionType = "sql"
	QuestionTypeOther QuestionType = "other"
)

// Question представляет вопрос из банка вопросов
type Question struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	QuestionType QuestionType `gorm:"column:question_type;size:20;not null" json:"question_type"`
	Text         string       `gorm:"type:text;not null" json:"text"`
	Weightage    float64      `gorm:"type:numeric(8,2);not null;default:1" json:"weightage"`
	// ReferenceSolution эталонный SQL-запрос, скрыт от клиента
	ReferenceSolution string `gorm:"type:text;not null;default:''" json:"-"`
	// DatabaseSchema скрипт создания и наполнения таблиц для SQL-вопроса
	DatabaseSchema string           `gorm:"type:text;not null;default:''" json:"database_schema,omitempty"`
	Options        []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsMCQ проверяет, что вопрос с выбором варианта
func (q *Question) IsMCQ() bool {
	return q.QuestionType == QuestionTypeMCQ
}

// IsSQL проверяет, что ответом на вопрос является SQL-запрос
func (q *Question) IsSQL() bool {
	return q.QuestionType == QuestionTypeSQL
}

// FindOption возвращает вариант ответа по ID или nil
func (q *Question) FindOption(optionID uint) *QuestionOption {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return &q.Options[i]
		}
	}
	return nil
}

// QuestionOption вариант ответа на MCQ-вопрос
type QuestionOption struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null;default:false" json:"-"` // Скрыто от клиента
}

// TableName определяет имя таблицы для GORM
func (QuestionOption) TableName() string {
	return "question_options"
}
