package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptStatus_IsTerminal(t *testing.T) {
	assert.False(t, AttemptStatusInProgress.IsTerminal())
	for _, s := range []AttemptStatus{AttemptStatusSubmitted, AttemptStatusTimeout, AttemptStatusDisqualified, AttemptStatusAbandoned} {
		assert.True(t, s.IsTerminal(), "статус %s должен быть терминальным", s)
	}
}

func TestAttemptStatus_IsFinalizeReason(t *testing.T) {
	assert.True(t, AttemptStatusSubmitted.IsFinalizeReason())
	assert.True(t, AttemptStatusTimeout.IsFinalizeReason())
	assert.True(t, AttemptStatusDisqualified.IsFinalizeReason())
	assert.False(t, AttemptStatusAbandoned.IsFinalizeReason())
	assert.False(t, AttemptStatusInProgress.IsFinalizeReason())
	assert.False(t, AttemptStatus("bogus").IsFinalizeReason())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AttemptStatus
		want     bool
	}{
		{AttemptStatusInProgress, AttemptStatusSubmitted, true},
		{AttemptStatusInProgress, AttemptStatusTimeout, true},
		{AttemptStatusInProgress, AttemptStatusDisqualified, true},
		{AttemptStatusInProgress, AttemptStatusAbandoned, true},
		{AttemptStatusInProgress, AttemptStatusInProgress, false},
		{AttemptStatusDisqualified, AttemptStatusInProgress, true},
		{AttemptStatusSubmitted, AttemptStatusInProgress, false},
		{AttemptStatusTimeout, AttemptStatusInProgress, false},
		{AttemptStatusAbandoned, AttemptStatusInProgress, false},
		{AttemptStatusSubmitted, AttemptStatusDisqualified, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestExam_InWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	assert.True(t, (&Exam{}).InWindow(now), "экзамен без расписания доступен всегда")
	assert.True(t, (&Exam{ScheduledStart: &start, ScheduledEnd: &end}).InWindow(now))
	assert.False(t, (&Exam{ScheduledStart: &end}).InWindow(now), "до начала окна")
	assert.False(t, (&Exam{ScheduledEnd: &start}).InWindow(now), "после конца окна")
	assert.True(t, (&Exam{ScheduledStart: &now, ScheduledEnd: &now}).InWindow(now), "границы включительно")
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 40.0, Percentage(2, 5))
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Equal(t, 100.0, Percentage(7, 5))
	assert.Equal(t, 0.0, Percentage(-1, 5))
}
