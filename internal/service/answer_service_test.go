package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

type answerMocks struct {
	tx            *fakeTransactor
	exams         *MockExamRepo
	examQuestions *MockExamQuestionRepo
	attempts      *MockAttemptRepo
	answers       *MockAnswerRepo
}

func newTestAnswerService(now time.Time, attempt *entity.ExamAttempt) (*AnswerService, *answerMocks) {
	m := &answerMocks{
		tx:            &fakeTransactor{},
		exams:         new(MockExamRepo),
		examQuestions: new(MockExamQuestionRepo),
		attempts:      new(MockAttemptRepo),
		answers:       new(MockAnswerRepo),
	}
	exam, _ := twoMCQExam()
	m.attempts.On("LockByID", mock.Anything, mock.Anything, uint(7), repository.LockShare).Return(attempt, nil)
	m.exams.On("GetByID", mock.Anything, mock.Anything, uint(1)).Return(exam, nil)
	svc := NewAnswerService(m.tx, m.exams, m.examQuestions, m.attempts, m.answers, fixedClock(now), zap.NewNop())
	return svc, m
}

func TestAnswerService_SaveAnswer_MCQ(t *testing.T) {
	// Arrange
	svc, m := newTestAnswerService(testNow.Add(time.Minute), inProgressAttempt(testNow))
	_, eqs := twoMCQExam()
	m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(11)).Return(&eqs[0], nil)
	m.answers.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(a *entity.StudentAnswer) bool {
		return a.AttemptID == 7 && a.ExamQuestionID == 11 && *a.SelectedOptionID == 1002 && a.AnswerText == ""
	})).Return(nil)

	// Act
	saved, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{
		ExamQuestionID:   11,
		SelectedOptionID: uintPtr(1002),
		AnswerText:       "ignored",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, saved.AnsweredAt.Equal(testNow.Add(time.Minute)))
	m.answers.AssertExpectations(t)
}

func TestAnswerService_SaveAnswer_RepeatedSavesUpsert(t *testing.T) {
	svc, m := newTestAnswerService(testNow.Add(time.Minute), inProgressAttempt(testNow))
	_, eqs := twoMCQExam()
	m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(11)).Return(&eqs[0], nil)
	m.answers.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	for _, opt := range []uint{1002, 1001, 1002} {
		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{ExamQuestionID: 11, SelectedOptionID: uintPtr(opt)})
		require.NoError(t, err)
	}

	m.answers.AssertNumberOfCalls(t, "Upsert", 3)
	m.answers.AssertNotCalled(t, "ListByAttempt", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerService_SaveAnswer_ExpiryGate(t *testing.T) {
	deadline := testNow.Add(30 * time.Minute)

	t.Run("within grace", func(t *testing.T) {
		svc, m := newTestAnswerService(deadline.Add(119*time.Second), inProgressAttempt(testNow))
		_, eqs := twoMCQExam()
		m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(11)).Return(&eqs[0], nil)
		m.answers.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{ExamQuestionID: 11, SelectedOptionID: uintPtr(1001)})
		assert.NoError(t, err)
	})

	t.Run("after grace", func(t *testing.T) {
		svc, m := newTestAnswerService(deadline.Add(121*time.Second), inProgressAttempt(testNow))

		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{ExamQuestionID: 11, SelectedOptionID: uintPtr(1001)})
		assert.ErrorIs(t, err, apperrors.ErrTimeExpired)
		m.answers.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAnswerService_SaveAnswer_Rejections(t *testing.T) {
	closed := inProgressAttempt(testNow)
	closed.Status = entity.AttemptStatusSubmitted
	foreign := inProgressAttempt(testNow)
	foreign.StudentID = 99

	tests := []struct {
		name    string
		attempt *entity.ExamAttempt
		in      SaveAnswerInput
		wantErr error
	}{
		{"closed attempt", closed, SaveAnswerInput{ExamQuestionID: 11}, apperrors.ErrAttemptClosed},
		{"other student", foreign, SaveAnswerInput{ExamQuestionID: 11}, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestAnswerService(testNow, tt.attempt)
			_, err := svc.SaveAnswer(context.Background(), student, 7, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			m.answers.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("no question reference", func(t *testing.T) {
		svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, 0, m.tx.calls)
	})

	t.Run("option of another question", func(t *testing.T) {
		svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
		_, eqs := twoMCQExam()
		m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(11)).Return(&eqs[0], nil)

		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{ExamQuestionID: 11, SelectedOptionID: uintPtr(1003)})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestAnswerService_SaveAnswer_QuestionResolution(t *testing.T) {
	_, eqs := twoMCQExam()

	t.Run("fallback by question id", func(t *testing.T) {
		svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
		m.examQuestions.On("FindByQuestionID", mock.Anything, mock.Anything, uint(1), uint(102)).
			Return([]entity.ExamQuestion{eqs[1]}, nil)
		m.answers.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(a *entity.StudentAnswer) bool {
			return a.ExamQuestionID == 12
		})).Return(nil)

		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{QuestionID: 102, SelectedOptionID: uintPtr(1003)})
		require.NoError(t, err)
		m.examQuestions.AssertNotCalled(t, "FindInExam", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("exam question id treated as question id", func(t *testing.T) {
		svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
		m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(101)).Return(nil, apperrors.ErrNotFound)
		m.examQuestions.On("FindByQuestionID", mock.Anything, mock.Anything, uint(1), uint(101)).
			Return([]entity.ExamQuestion{eqs[0]}, nil)
		m.answers.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		saved, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{ExamQuestionID: 101, SelectedOptionID: uintPtr(1001)})
		require.NoError(t, err)
		assert.Equal(t, uint(11), saved.ExamQuestionID)
	})

	t.Run("not in exam", func(t *testing.T) {
		svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
		m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(500)).Return(nil, apperrors.ErrNotFound)
		m.examQuestions.On("FindByQuestionID", mock.Anything, mock.Anything, uint(1), uint(500)).Return([]entity.ExamQuestion{}, nil)

		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{ExamQuestionID: 500})
		assert.ErrorIs(t, err, apperrors.ErrQuestionNotInExam)
	})

	t.Run("ambiguous mapping", func(t *testing.T) {
		svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
		m.examQuestions.On("FindByQuestionID", mock.Anything, mock.Anything, uint(1), uint(101)).
			Return([]entity.ExamQuestion{eqs[0], eqs[0]}, nil)

		_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{QuestionID: 101})
		assert.ErrorIs(t, err, apperrors.ErrDataIntegrity)
	})
}

func TestAnswerService_SaveAnswer_SQLText(t *testing.T) {
	svc, m := newTestAnswerService(testNow, inProgressAttempt(testNow))
	eq := &entity.ExamQuestion{
		ID: 13, ExamID: 1, QuestionID: 103, Weightage: 1,
		Question: entity.Question{ID: 103, QuestionType: entity.QuestionTypeSQL},
	}
	m.examQuestions.On("FindInExam", mock.Anything, mock.Anything, uint(1), uint(13)).Return(eq, nil)
	m.answers.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(a *entity.StudentAnswer) bool {
		return a.SelectedOptionID == nil && a.AnswerText == "SELECT 1"
	})).Return(nil)

	_, err := svc.SaveAnswer(context.Background(), student, 7, SaveAnswerInput{
		ExamQuestionID:   13,
		SelectedOptionID: uintPtr(1001),
		AnswerText:       "SELECT 1",
	})

	require.NoError(t, err)
	m.answers.AssertExpectations(t)
}
