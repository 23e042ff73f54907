package service

import (
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// DefaultGracePeriod допуск на сетевые задержки после окончания времени экзамена
const DefaultGracePeriod = 120 * time.Second

// TimeKeeper считает оставшееся время попытки.
// Серверные часы единственный источник времени.
type TimeKeeper struct {
	now   func() time.Time
	grace time.Duration
}

// NewTimeKeeper создает TimeKeeper с системными часами
func NewTimeKeeper(grace time.Duration) *TimeKeeper {
	if grace < 0 {
		grace = 0
	}
	return &TimeKeeper{now: time.Now, grace: grace}
}

// WithClock подменяет источник времени
func (tk *TimeKeeper) WithClock(now func() time.Time) *TimeKeeper {
	tk.now = now
	return tk
}

// Now текущее серверное время
func (tk *TimeKeeper) Now() time.Time {
	return tk.now()
}

// Grace льготный период
func (tk *TimeKeeper) Grace() time.Duration {
	return tk.grace
}

// Deadline момент окончания попытки без учета grace
func (tk *TimeKeeper) Deadline(attempt *entity.ExamAttempt, exam *entity.Exam) time.Time {
	return attempt.StartedAt.Add(exam.Duration())
}

// RemainingSeconds оставшееся время в целых секундах, не меньше 0
func (tk *TimeKeeper) RemainingSeconds(attempt *entity.ExamAttempt, exam *entity.Exam) int64 {
	left := tk.Deadline(attempt, exam).Sub(tk.now())
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// IsExpired true, если время попытки вышло с учетом grace
func (tk *TimeKeeper) IsExpired(attempt *entity.ExamAttempt, exam *entity.Exam) bool {
	return tk.now().After(tk.Deadline(attempt, exam).Add(tk.grace))
}
