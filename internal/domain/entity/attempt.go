package entity

import (
	"time"
)

// AttemptStatus статус попытки
type AttemptStatus string

// Статусы попытки. in_progress начальный, остальные терминальные.
const (
	AttemptStatusInProgress   AttemptStatus = "in_progress"
	AttemptStatusSubmitted    AttemptStatus = "submitted"
	AttemptStatusTimeout      AttemptStatus = "timeout"
	AttemptStatusDisqualified AttemptStatus = "disqualified"
	AttemptStatusAbandoned    AttemptStatus = "abandoned"
)

// IsTerminal проверяет, что статус терминальный
func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptStatusInProgress
}

// IsFinalizeReason проверяет, что статус допустим как причина закрытия со скорингом
func (s AttemptStatus) IsFinalizeReason() bool {
	switch s {
	case AttemptStatusSubmitted, AttemptStatusTimeout, AttemptStatusDisqualified:
		return true
	}
	return false
}

// CanTransition описывает граф переходов попытки.
// Единственный переход из терминального состояния: disqualified -> in_progress (resume).
func CanTransition(from, to AttemptStatus) bool {
	switch from {
	case AttemptStatusInProgress:
		return to.IsTerminal()
	case AttemptStatusDisqualified:
		return to == AttemptStatusInProgress
	}
	return false
}

// ExamAttempt попытка прохождения экзамена студентом
type ExamAttempt struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	ExamID      uint          `gorm:"not null;index:idx_attempt_exam_student" json:"exam_id"`
	StudentID   uint          `gorm:"not null;index:idx_attempt_exam_student" json:"student_id"`
	Status      AttemptStatus `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	StartedAt   time.Time     `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	IPAddress   string        `gorm:"column:ip_address;size:64;not null;default:''" json:"ip_address"`
	UserAgent   string        `gorm:"size:512;not null;default:''" json:"user_agent"`
	Exam        *Exam         `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// IsInProgress проверяет, что попытка открыта
func (a *ExamAttempt) IsInProgress() bool {
	return a.Status == AttemptStatusInProgress
}

// IsOwnedBy проверяет принадлежность попытки студенту
func (a *ExamAttempt) IsOwnedBy(studentID uint) bool {
	return a.StudentID == studentID
}
