package websocket

import (
	"encoding/json"
	"time"
)

// Типы сообщений канала отслеживания.
const (
	// входящие
	MessageJoin           = "join"
	MessageReportLocation = "reportLocation"

	// исходящие
	MessageJoined             = "joined"
	MessageLocationUpdated    = "locationUpdated"
	MessageOrderStatusChanged = "orderStatusChanged"
	MessageError              = "error"
)

// Envelope - это "конверт", в котором мы отправляем наши сообщения.
// Тип сообщения подсказывает клиенту, как разбирать payload.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEnvelope(messageType string, payload interface{}) Envelope {
	return Envelope{Type: messageType, Payload: payload, Timestamp: time.Now().UTC()}
}

// Inbound - сообщение от клиента. Payload разбирается по типу.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinPayload struct {
	OrderID string `json:"orderId"`
}

type ReportLocationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LocationPayload struct {
	OrderID    string    `json:"orderId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ReportedAt time.Time `json:"reportedAt"`
}

type JoinedPayload struct {
	OrderID string `json:"orderId"`
}

type StatusChangedPayload struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
