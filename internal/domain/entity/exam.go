package entity

import (
	"time"
)

// Exam представляет экзамен с расписанием и длительностью
type Exam struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Description     string         `gorm:"size:1000;not null;default:''" json:"description"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	PassingScore    float64        `gorm:"type:numeric(5,2);not null;default:0" json:"passing_score"`
	ScheduledStart  *time.Time     `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time     `json:"scheduled_end,omitempty"`
	IsActive        bool           `gorm:"not null;default:true" json:"is_active"`
	Questions       []ExamQuestion `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Exam) TableName() string {
	return "exams"
}

// InWindow проверяет, что момент now попадает в окно расписания.
// Отсутствующая граница окна не ограничивает.
func (e *Exam) InWindow(now time.Time) bool {
	if e.ScheduledStart != nil && now.Before(*e.ScheduledStart) {
		return false
	}
	if e.ScheduledEnd != nil && now.After(*e.ScheduledEnd) {
		return false
	}
	return true
}

// Duration возвращает длительность экзамена
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}
