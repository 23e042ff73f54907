package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/handler/helper"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/internal/websocket"
)

// Время на обработку одного сообщения прокторинга
const proctorOpTimeout = 15 * time.Second

// ProctorAttempts операции попытки, которые нужны каналу прокторинга
type ProctorAttempts interface {
	RemainingSeconds(ctx context.Context, actor service.Actor, attemptID uint) (int64, *entity.ExamAttempt, error)
	Finalize(ctx context.Context, actor *service.Actor, attemptID uint, reason entity.AttemptStatus) (*service.ResultView, error)
}

// ProctorHandler обслуживает WebSocket канал прокторинга попытки
type ProctorHandler struct {
	attempts ProctorAttempts
	hub      *websocket.ProctorHub
	upgrader gorillaws.Upgrader
	log      *zap.Logger
}

// NewProctorHandler создает обработчик. Пустой allowedOrigins разрешает любые Origin.
func NewProctorHandler(attempts ProctorAttempts, hub *websocket.ProctorHub, allowedOrigins []string, log *zap.Logger) *ProctorHandler {
	h := &ProctorHandler{
		attempts: attempts,
		hub:      hub,
		log:      log.Named("proctor_handler"),
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins, h.log),
	}
	return h
}

// originChecker разрешает запросы без Origin (не браузерные клиенты) и из списка allowed
func originChecker(allowed []string, log *zap.Logger) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		log.Warn("WebSocket: rejected unauthorized origin", zap.String("origin", origin))
		return false
	}
}

// HandleConnection подключает клиента к каналу попытки
// GET /ws/attempts/:id/proctor?token=
func (h *ProctorHandler) HandleConnection(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)
	actor := helper.ActorFromContext(c)

	// Проверки до апгрейда, чтобы клиент получил обычный HTTP-ответ
	remaining, attempt, err := h.attempts.RemainingSeconds(c.Request.Context(), actor, attemptID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		h.log.Info("WebSocket upgrade failed", zap.Uint("attempt_id", attemptID), zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn, attemptID, actor.UserID)
	client.Start(h.messageHandler(actor, attempt.StudentID))
	client.SendJSON(websocket.Event{Type: websocket.TIME_SYNC, Data: websocket.TimeSyncData{
		AttemptID:        attemptID,
		RemainingSeconds: remaining,
		ServerTime:       time.Now().Unix(),
	}})
}

// messageHandler обрабатывает HEARTBEAT и VIOLATION.
// Нарушения учитываются только от владельца попытки.
func (h *ProctorHandler) messageHandler(actor service.Actor, ownerID uint) websocket.MessageHandler {
	return func(message []byte, client *websocket.Client) error {
		var msg websocket.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendError("bad_request", "invalid message format")
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), proctorOpTimeout)
		defer cancel()

		switch msg.Type {
		case websocket.HEARTBEAT:
			return h.handleHeartbeat(ctx, actor, client)

		case websocket.VIOLATION:
			if actor.UserID != ownerID {
				client.SendError("forbidden", "only the attempt owner can report violations")
				return nil
			}
			var data websocket.ViolationData
			if len(msg.Data) > 0 {
				_ = json.Unmarshal(msg.Data, &data)
			}
			h.log.Info("Proctoring violation reported",
				zap.Uint("attempt_id", client.AttemptID),
				zap.Uint("user_id", actor.UserID),
				zap.String("reason", data.Reason))
			return h.finalize(ctx, actor, client, entity.AttemptStatusDisqualified)

		default:
			client.SendError("bad_request", fmt.Sprintf("unknown message type %q", msg.Type))
			return nil
		}
	}
}

func (h *ProctorHandler) handleHeartbeat(ctx context.Context, actor service.Actor, client *websocket.Client) error {
	remaining, _, err := h.attempts.RemainingSeconds(ctx, actor, client.AttemptID)
	switch {
	case err == nil:
		client.SendJSON(websocket.Event{Type: websocket.TIME_SYNC, Data: websocket.TimeSyncData{
			AttemptID:        client.AttemptID,
			RemainingSeconds: remaining,
			ServerTime:       time.Now().Unix(),
		}})
		return nil
	case errors.Is(err, apperrors.ErrTimeExpired):
		// Время вышло: закрываем попытку, не дожидаясь фоновой проверки
		return h.finalize(ctx, actor, client, entity.AttemptStatusTimeout)
	case errors.Is(err, apperrors.ErrAttemptClosed):
		client.SendError("attempt_closed", "attempt is closed")
		return err
	default:
		client.SendError("internal", "failed to sync time")
		return err
	}
}

// finalize закрывает попытку. ATTEMPT_CLOSED клиенты получают через хаб.
func (h *ProctorHandler) finalize(ctx context.Context, actor service.Actor, client *websocket.Client, reason entity.AttemptStatus) error {
	_, err := h.attempts.Finalize(ctx, &actor, client.AttemptID, reason)
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrInvalidState) {
		client.SendError("attempt_closed", "attempt is closed")
		return err
	}
	h.log.Error("Failed to finalize attempt from proctor channel",
		zap.Uint("attempt_id", client.AttemptID), zap.String("reason", string(reason)), zap.Error(err))
	client.SendError("internal", "failed to close attempt")
	return nil
}
