package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/pkg/monitoring"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 1024

	// Размер буфера канала отправки
	defaultClientBufferSize = 16
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// MessageHandler обрабатывает одно сообщение клиента.
// Ошибка считается фатальной для соединения.
type MessageHandler func(message []byte, client *Client) error

// Client является посредником между WebSocket соединением и hub.
// Одно соединение обслуживает одну попытку.
type Client struct {
	AttemptID uint
	UserID    uint

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub  *ProctorHub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг, указывающий что канал send закрыт (для предотвращения panic)
	sendClosed atomic.Bool

	log *zap.Logger
}

// NewClient создает клиента попытки attemptID
func NewClient(hub *ProctorHub, conn *websocket.Conn, attemptID, userID uint) *Client {
	connectionID := uuid.New().String()
	return &Client{
		AttemptID:    attemptID,
		UserID:       userID,
		ConnectionID: connectionID,
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, defaultClientBufferSize),
		log: hub.log.With(
			zap.Uint("attempt_id", attemptID),
			zap.Uint("user_id", userID),
			zap.String("conn_id", connectionID),
		),
	}
}

// Start регистрирует клиента в хабе и запускает горутины чтения и записи
func (c *Client) Start(handler MessageHandler) {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump(handler)
}

// SendJSON ставит сообщение в очередь отправки. Возвращает false, если очередь полна или закрыта.
func (c *Client) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("Failed to marshal outgoing message", zap.Error(err))
		return false
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) (ok bool) {
	if c.sendClosed.Load() {
		return false
	}
	defer func() {
		// канал мог закрыться между проверкой и отправкой
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		monitoring.ProctorMessages.WithLabelValues("out", messageTypeFromBytes(data)).Inc()
		return true
	default:
		c.log.Warn("Send buffer full, message dropped", zap.String("type", messageTypeFromBytes(data)))
		return false
	}
}

// SendError отправляет клиенту ERROR
func (c *Client) SendError(errorType, message string) {
	c.SendJSON(Event{Type: ERROR, Data: ErrorData{Message: message, ErrorType: errorType}})
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.log.Debug("Read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Info("WebSocket read error", zap.Error(err))
			}
			return
		}
		monitoring.ProctorMessages.WithLabelValues("in", messageTypeFromBytes(message)).Inc()

		if handlerErr := safeHandleMessage(message, c, handler); handlerErr != nil {
			c.log.Info("Closing connection after handler error", zap.Error(handlerErr))
			return
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover
func safeHandleMessage(message []byte, client *Client, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			client.log.Error("PANIC recovered in message handler",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if handler == nil {
		return nil
	}
	return handler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Хаб закрыл канал: отправляем close frame
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Info("WebSocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseSend безопасно закрывает канал send (только один раз)
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// messageTypeFromBytes пытается извлечь тип сообщения из JSON байтов
func messageTypeFromBytes(message []byte) string {
	var event struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(message, &event) == nil && event.Type != "" {
		switch event.Type {
		case HEARTBEAT, VIOLATION, TIME_SYNC, ATTEMPT_CLOSED, ERROR:
			return event.Type
		}
		return "other"
	}
	return "unknown"
}
