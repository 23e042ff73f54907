package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/pkg/monitoring"
)

// ProctorHub хранит соединения прокторинга, сгруппированные по попыткам.
// У одной попытки может быть несколько вкладок, каждая со своим соединением.
type ProctorHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	log     *zap.Logger
}

var _ service.AttemptNotifier = (*ProctorHub)(nil)

// NewProctorHub создает пустой хаб
func NewProctorHub(log *zap.Logger) *ProctorHub {
	return &ProctorHub{
		clients: make(map[uint]map[*Client]struct{}),
		log:     log.Named("proctor_hub"),
	}
}

// Register добавляет клиента
func (h *ProctorHub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.AttemptID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.AttemptID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	monitoring.ProctorConnections.Inc()
	c.log.Info("Proctor client registered")
}

// Unregister удаляет клиента и закрывает его канал отправки. Повторный вызов безопасен.
func (h *ProctorHub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.AttemptID]
	_, present := set[c]
	if ok && present {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.AttemptID)
		}
	}
	h.mu.Unlock()

	if present {
		monitoring.ProctorConnections.Dec()
		c.log.Info("Proctor client unregistered")
	}
	c.CloseSend()
}

// ClientCount возвращает число соединений попытки
func (h *ProctorHub) ClientCount(attemptID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[attemptID])
}

// snapshot копирует список клиентов попытки, чтобы не держать блокировку во время отправки
func (h *ProctorHub) snapshot(attemptID uint) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[attemptID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// SendToAttempt отправляет событие всем соединениям попытки. Возвращает число доставленных.
func (h *ProctorHub) SendToAttempt(attemptID uint, event Event) int {
	delivered := 0
	for _, c := range h.snapshot(attemptID) {
		if c.SendJSON(event) {
			delivered++
		}
	}
	return delivered
}

// NotifyAttemptClosed сообщает клиентам о закрытии попытки и закрывает их соединения.
// view может быть nil, если результат не создавался.
func (h *ProctorHub) NotifyAttemptClosed(attemptID uint, status entity.AttemptStatus, view *service.ResultView) {
	data := AttemptClosedData{AttemptID: attemptID, Status: string(status)}
	if view != nil {
		data.Result = view
	}

	clients := h.snapshot(attemptID)
	if len(clients) == 0 {
		return
	}
	for _, c := range clients {
		c.SendJSON(Event{Type: ATTEMPT_CLOSED, Data: data})
		// writePump отправит оставшиеся сообщения и close frame
		c.CloseSend()
	}
	h.log.Info("Attempt closed, proctor clients notified",
		zap.Uint("attempt_id", attemptID),
		zap.String("status", string(status)),
		zap.Int("clients", len(clients)))
}
