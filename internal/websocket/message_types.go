package websocket

import "encoding/json"

// Сообщения клиента
const (
	// HEARTBEAT запрос синхронизации времени, сервер отвечает TIME_SYNC
	HEARTBEAT = "HEARTBEAT"

	// VIOLATION нарушение правил экзамена (смена вкладки, выход из полноэкранного режима)
	VIOLATION = "VIOLATION"
)

// Сообщения сервера
const (
	// TIME_SYNC оставшееся время попытки по серверным часам
	TIME_SYNC = "TIME_SYNC"

	// ATTEMPT_CLOSED попытка закрыта, после него сервер закрывает соединение
	ATTEMPT_CLOSED = "ATTEMPT_CLOSED"

	// ERROR ошибка обработки сообщения
	ERROR = "ERROR"
)

// Message входящее сообщение клиента
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event исходящее сообщение сервера
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ViolationData данные VIOLATION
type ViolationData struct {
	Reason string `json:"reason"`
}

// TimeSyncData данные TIME_SYNC
type TimeSyncData struct {
	AttemptID        uint  `json:"attempt_id"`
	RemainingSeconds int64 `json:"remaining_seconds"`
	ServerTime       int64 `json:"server_time"`
}

// AttemptClosedData данные ATTEMPT_CLOSED
type AttemptClosedData struct {
	AttemptID uint        `json:"attempt_id"`
	Status    string      `json:"status"`
	Result    interface{} `json:"result,omitempty"`
}

// ErrorData данные ERROR
type ErrorData struct {
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}
