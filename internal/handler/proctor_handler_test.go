package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/middleware"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/internal/websocket"
)

// startProctorRouter поднимает канал прокторинга за заглушкой аутентификации
func startProctorRouter(t *testing.T, attempts *MockAttemptLifecycle, hub *websocket.ProctorHub, userID uint) string {
	t.Helper()
	h := NewProctorHandler(attempts, hub, []string{"https://exam.example.com"}, zap.NewNop())
	router := gin.New()
	router.GET("/ws/attempts/:id/proctor", func(c *gin.Context) {
		withIdentity(c, userID, false)
		c.Next()
	}, middleware.ExtractUintParam("id", "attemptID"), h.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/attempts/7/proctor"
}

func readWSEvent(t *testing.T, conn *gorillaws.Conn) websocket.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event websocket.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestProctor_RejectsClosedAttemptBeforeUpgrade(t *testing.T) {
	attempts := new(MockAttemptLifecycle)
	attempts.On("RemainingSeconds", mock.Anything, studentActor, uint(7)).
		Return(int64(0), &entity.ExamAttempt{ID: 7, StudentID: 42, Status: entity.AttemptStatusSubmitted}, apperrors.ErrAttemptClosed)
	url := startProctorRouter(t, attempts, websocket.NewProctorHub(zap.NewNop()), 42)

	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProctor_RejectsForeignOrigin(t *testing.T) {
	attempts := new(MockAttemptLifecycle)
	attempts.On("RemainingSeconds", mock.Anything, studentActor, uint(7)).
		Return(int64(600), &entity.ExamAttempt{ID: 7, StudentID: 42}, nil)
	url := startProctorRouter(t, attempts, websocket.NewProctorHub(zap.NewNop()), 42)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := gorillaws.DefaultDialer.Dial(url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProctor_HeartbeatAndViolation(t *testing.T) {
	// Arrange
	hub := websocket.NewProctorHub(zap.NewNop())
	attempts := new(MockAttemptLifecycle)
	attempts.On("RemainingSeconds", mock.Anything, studentActor, uint(7)).
		Return(int64(600), &entity.ExamAttempt{ID: 7, StudentID: 42, Status: entity.AttemptStatusInProgress}, nil)
	view := &service.ResultView{AttemptID: 7, Status: entity.AttemptStatusDisqualified, Breakdown: []service.BreakdownItem{}}
	attempts.On("Finalize", mock.Anything, &studentActor, uint(7), entity.AttemptStatusDisqualified).
		Run(func(mock.Arguments) {
			// Сервис уведомляет хаб после фиксации транзакции
			hub.NotifyAttemptClosed(7, entity.AttemptStatusDisqualified, view)
		}).
		Return(view, nil)
	url := startProctorRouter(t, attempts, hub, 42)

	conn, _, err := gorillaws.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://exam.example.com"}})
	require.NoError(t, err)
	defer conn.Close()

	// Первое сообщение после подключения: синхронизация времени
	event := readWSEvent(t, conn)
	assert.Equal(t, websocket.TIME_SYNC, event.Type)

	// Act: heartbeat
	require.NoError(t, conn.WriteJSON(map[string]string{"type": websocket.HEARTBEAT}))
	event = readWSEvent(t, conn)

	// Assert
	assert.Equal(t, websocket.TIME_SYNC, event.Type)
	data, _ := json.Marshal(event.Data)
	assert.Contains(t, string(data), `"remaining_seconds":600`)

	// Act: violation
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": websocket.VIOLATION, "data": map[string]string{"reason": "tab_switch"},
	}))
	event = readWSEvent(t, conn)

	// Assert
	assert.Equal(t, websocket.ATTEMPT_CLOSED, event.Type)
	data, _ = json.Marshal(event.Data)
	assert.Contains(t, string(data), `"status":"disqualified"`)
	attempts.AssertCalled(t, "Finalize", mock.Anything, &studentActor, uint(7), entity.AttemptStatusDisqualified)
}

func TestProctor_ViolationFromNonOwnerIgnored(t *testing.T) {
	hub := websocket.NewProctorHub(zap.NewNop())
	attempts := new(MockAttemptLifecycle)
	staff := service.Actor{UserID: 1}
	attempts.On("RemainingSeconds", mock.Anything, staff, uint(7)).
		Return(int64(600), &entity.ExamAttempt{ID: 7, StudentID: 42}, nil)
	url := startProctorRouter(t, attempts, hub, 1)

	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readWSEvent(t, conn) // TIME_SYNC

	require.NoError(t, conn.WriteJSON(map[string]string{"type": websocket.VIOLATION}))
	event := readWSEvent(t, conn)

	assert.Equal(t, websocket.ERROR, event.Type)
	attempts.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
