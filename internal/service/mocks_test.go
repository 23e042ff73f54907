package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	"github.com/yourusername/exam-api/internal/sandbox"
)

// ============================================================================
// Моки репозиториев
// ============================================================================

// fakeTransactor выполняет fn без реальной транзакции
type fakeTransactor struct {
	calls int
}

func (f *fakeTransactor) WithinTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

type MockExamRepo struct {
	mock.Mock
}

func (m *MockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.Exam, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Exam), args.Error(1)
}

type MockExamQuestionRepo struct {
	mock.Mock
}

func (m *MockExamQuestionRepo) FindInExam(ctx context.Context, tx *gorm.DB, examID, examQuestionID uint) (*entity.ExamQuestion, error) {
	args := m.Called(ctx, tx, examID, examQuestionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamQuestion), args.Error(1)
}

func (m *MockExamQuestionRepo) FindByQuestionID(ctx context.Context, tx *gorm.DB, examID, questionID uint) ([]entity.ExamQuestion, error) {
	args := m.Called(ctx, tx, examID, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamQuestion), args.Error(1)
}

func (m *MockExamQuestionRepo) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]entity.ExamQuestion, error) {
	args := m.Called(ctx, tx, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamQuestion), args.Error(1)
}

type MockAttemptRepo struct {
	mock.Mock
}

func (m *MockAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *entity.ExamAttempt) error {
	args := m.Called(ctx, tx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.ExamAttempt, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepo) LockByID(ctx context.Context, tx *gorm.DB, id uint, mode repository.LockMode) (*entity.ExamAttempt, error) {
	args := m.Called(ctx, tx, id, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepo) LatestByExamAndStudent(ctx context.Context, tx *gorm.DB, examID, studentID uint) (*entity.ExamAttempt, error) {
	args := m.Called(ctx, tx, examID, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepo) LockExamStudent(ctx context.Context, tx *gorm.DB, examID, studentID uint) error {
	args := m.Called(ctx, tx, examID, studentID)
	return args.Error(0)
}

func (m *MockAttemptRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to entity.AttemptStatus, submittedAt *time.Time) error {
	args := m.Called(ctx, tx, id, from, to, submittedAt)
	return args.Error(0)
}

func (m *MockAttemptRepo) ListExpiredInProgress(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]entity.ExamAttempt, error) {
	args := m.Called(ctx, now, grace, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptRepo) ListByExam(ctx context.Context, examID uint) ([]entity.ExamAttempt, error) {
	args := m.Called(ctx, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamAttempt), args.Error(1)
}

type MockAnswerRepo struct {
	mock.Mock
}

func (m *MockAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *entity.StudentAnswer) error {
	args := m.Called(ctx, tx, answer)
	return args.Error(0)
}

func (m *MockAnswerRepo) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]entity.StudentAnswer, error) {
	args := m.Called(ctx, tx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.StudentAnswer), args.Error(1)
}

type MockResultRepo struct {
	mock.Mock
}

func (m *MockResultRepo) Create(ctx context.Context, tx *gorm.DB, result *entity.ExamResult) error {
	args := m.Called(ctx, tx, result)
	return args.Error(0)
}

func (m *MockResultRepo) GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*entity.ExamResult, error) {
	args := m.Called(ctx, tx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamResult), args.Error(1)
}

func (m *MockResultRepo) DeleteByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	args := m.Called(ctx, tx, attemptID)
	return args.Error(0)
}

func (m *MockResultRepo) ListByAttemptIDs(ctx context.Context, attemptIDs []uint) ([]entity.ExamResult, error) {
	args := m.Called(ctx, attemptIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExamResult), args.Error(1)
}

type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepo) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepo) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheRepo) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

type MockSQLRunner struct {
	mock.Mock
}

func (m *MockSQLRunner) Run(ctx context.Context, setupScript, query string) (*sandbox.ResultSet, error) {
	args := m.Called(ctx, setupScript, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sandbox.ResultSet), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyAttemptClosed(attemptID uint, status entity.AttemptStatus, view *ResultView) {
	m.Called(attemptID, status, view)
}

// ============================================================================
// Фикстуры
// ============================================================================

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) *TimeKeeper {
	return NewTimeKeeper(DefaultGracePeriod).WithClock(func() time.Time { return t })
}

func uintPtr(v uint) *uint { return &v }

// twoMCQExam экзамен на 30 минут с двумя MCQ-вопросами весом 2 и 3
func twoMCQExam() (*entity.Exam, []entity.ExamQuestion) {
	exam := &entity.Exam{ID: 1, Title: "Basics", DurationMinutes: 30, PassingScore: 50, IsActive: true}
	eqs := []entity.ExamQuestion{
		{
			ID: 11, ExamID: 1, QuestionID: 101, Order: 1, Weightage: 2,
			Question: entity.Question{
				ID: 101, QuestionType: entity.QuestionTypeMCQ, Text: "2+2?",
				Options: []entity.QuestionOption{
					{ID: 1001, QuestionID: 101, Text: "4", IsCorrect: true},
					{ID: 1002, QuestionID: 101, Text: "5"},
				},
			},
		},
		{
			ID: 12, ExamID: 1, QuestionID: 102, Order: 2, Weightage: 3,
			Question: entity.Question{
				ID: 102, QuestionType: entity.QuestionTypeMCQ, Text: "Capital of France?",
				Options: []entity.QuestionOption{
					{ID: 1003, QuestionID: 102, Text: "Paris", IsCorrect: true},
					{ID: 1004, QuestionID: 102, Text: "Rome"},
				},
			},
		},
	}
	return exam, eqs
}

func inProgressAttempt(startedAt time.Time) *entity.ExamAttempt {
	return &entity.ExamAttempt{
		ID: 7, ExamID: 1, StudentID: 42,
		Status: entity.AttemptStatusInProgress, StartedAt: startedAt,
	}
}
