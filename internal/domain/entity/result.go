package entity

import (
	"math"
	"time"
)

// ExamResult итог попытки. Создается один раз на попытку и дальше не меняется.
type ExamResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AttemptID      uint      `gorm:"not null;uniqueIndex" json:"attempt_id"`
	TotalScore     float64   `gorm:"type:numeric(10,2);not null;default:0" json:"total_score"`
	MaxScore       float64   `gorm:"type:numeric(10,2);not null;default:0" json:"max_score"`
	Percentage     float64   `gorm:"type:numeric(5,2);not null;default:0" json:"percentage"`
	CorrectAnswers int       `gorm:"not null;default:0" json:"correct_answers"`
	TotalQuestions int       `gorm:"not null;default:0" json:"total_questions"`
	IsPassed       bool      `gorm:"not null;default:false" json:"is_passed"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (ExamResult) TableName() string {
	return "exam_results"
}

// Percentage вычисляет процент с округлением до сотых, в пределах [0, 100].
// При нулевом maxScore возвращает 0.
func Percentage(totalScore, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	p := totalScore / maxScore * 100
	p = math.Round(p*100) / 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
