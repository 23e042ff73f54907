package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/middleware"
	"github.com/yourusername/exam-api/internal/sandbox"
	"github.com/yourusername/exam-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func fixedClock() *service.TimeKeeper {
	return service.NewTimeKeeper(service.DefaultGracePeriod).WithClock(func() time.Time { return testNow })
}

// newTestGinContext создает *gin.Context для тестов с JSON body
func newTestGinContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

// withIdentity заполняет контекст так, как это делает RequireAuth
func withIdentity(c *gin.Context, userID uint, staff bool) {
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextIsStaff, staff)
}

// parseJSONResponse парсит JSON ответ из *httptest.ResponseRecorder
func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

// MockAttemptLifecycle мок AttemptLifecycle
type MockAttemptLifecycle struct {
	mock.Mock
}

func (m *MockAttemptLifecycle) Start(ctx context.Context, actor service.Actor, examID uint, meta service.ClientMeta) (*service.StartResult, error) {
	args := m.Called(ctx, actor, examID, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StartResult), args.Error(1)
}

func (m *MockAttemptLifecycle) GetQuestions(ctx context.Context, actor service.Actor, attemptID uint) (*service.AttemptQuestions, error) {
	args := m.Called(ctx, actor, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AttemptQuestions), args.Error(1)
}

func (m *MockAttemptLifecycle) Finalize(ctx context.Context, actor *service.Actor, attemptID uint, reason entity.AttemptStatus) (*service.ResultView, error) {
	args := m.Called(ctx, actor, attemptID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResultView), args.Error(1)
}

func (m *MockAttemptLifecycle) GetResult(ctx context.Context, actor service.Actor, attemptID uint) (*service.ResultView, error) {
	args := m.Called(ctx, actor, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResultView), args.Error(1)
}

func (m *MockAttemptLifecycle) Resume(ctx context.Context, actor service.Actor, attemptID uint) (*entity.ExamAttempt, error) {
	args := m.Called(ctx, actor, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptLifecycle) Abandon(ctx context.Context, actor service.Actor, attemptID uint) (*entity.ExamAttempt, error) {
	args := m.Called(ctx, actor, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamAttempt), args.Error(1)
}

func (m *MockAttemptLifecycle) RemainingSeconds(ctx context.Context, actor service.Actor, attemptID uint) (int64, *entity.ExamAttempt, error) {
	args := m.Called(ctx, actor, attemptID)
	var attempt *entity.ExamAttempt
	if a := args.Get(1); a != nil {
		attempt = a.(*entity.ExamAttempt)
	}
	return args.Get(0).(int64), attempt, args.Error(2)
}

// MockAnswerSaver мок AnswerSaver
type MockAnswerSaver struct {
	mock.Mock
}

func (m *MockAnswerSaver) SaveAnswer(ctx context.Context, actor service.Actor, attemptID uint, in service.SaveAnswerInput) (*entity.StudentAnswer, error) {
	args := m.Called(ctx, actor, attemptID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.StudentAnswer), args.Error(1)
}

// MockSQLRunner мок service.SQLRunner
type MockSQLRunner struct {
	mock.Mock
}

func (m *MockSQLRunner) Run(ctx context.Context, setup, query string) (*sandbox.ResultSet, error) {
	args := m.Called(ctx, setup, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sandbox.ResultSet), args.Error(1)
}

// MockExporter мок ResultsExporter
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportExamResults(ctx context.Context, examID uint, w io.Writer) (*entity.Exam, error) {
	args := m.Called(ctx, examID, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Exam), args.Error(1)
}

func newAttemptHandler(attempts *MockAttemptLifecycle, answers *MockAnswerSaver) *AttemptHandler {
	return NewAttemptHandler(attempts, answers, fixedClock(), zap.NewNop())
}
