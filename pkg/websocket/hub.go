package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Conn - соединение с точки зрения хаба. Send не должен блокироваться.
type Conn interface {
	ID() string
	Send(message []byte) bool
	Close()
}

type room struct {
	mu      sync.RWMutex
	members map[string]Conn
	closed  bool
}

// Hub управляет комнатами заказов. У каждой комнаты свой мьютекс,
// так что рассылка в одну комнату не мешает остальным.
type Hub struct {
	rooms  sync.Map // roomID -> *room
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger}
}

// Join добавляет соединение в комнату, создавая её при необходимости.
func (h *Hub) Join(roomID string, c Conn) {
	for {
		v, _ := h.rooms.LoadOrStore(roomID, &room{members: make(map[string]Conn)})
		r := v.(*room)
		r.mu.Lock()
		// комнату успели удалить как пустую - берём новую
		if r.closed {
			r.mu.Unlock()
			continue
		}
		r.members[c.ID()] = c
		r.mu.Unlock()
		return
	}
}

// Leave убирает соединение из комнаты. Пустая комната удаляется.
func (h *Hub) Leave(roomID, connID string) {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return
	}
	r := v.(*room)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, connID)
	if len(r.members) == 0 && !r.closed {
		r.closed = true
		h.rooms.CompareAndDelete(roomID, r)
	}
}

// Broadcast рассылает сообщение всем участникам комнаты, кроме exceptConnID.
// Соединения с переполненным буфером исключаются из комнаты и закрываются.
func (h *Hub) Broadcast(roomID string, env Envelope, exceptConnID string) int {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return 0
	}
	r := v.(*room)

	message, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Ошибка сериализации сообщения для WebSocket", zap.String("type", env.Type), zap.Error(err))
		return 0
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.members))
	for id, c := range r.members {
		if id != exceptConnID {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(message) {
			delivered++
			continue
		}
		h.logger.Warn("медленный клиент отключён от комнаты", zap.String("room", roomID), zap.String("conn", c.ID()))
		h.Leave(roomID, c.ID())
		c.Close()
	}
	return delivered
}

// SendTo отправляет сообщение одному соединению.
func (h *Hub) SendTo(c Conn, env Envelope) bool {
	message, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Ошибка сериализации сообщения для WebSocket", zap.String("type", env.Type), zap.Error(err))
		return false
	}
	return c.Send(message)
}

// RoomSize - число участников комнаты.
func (h *Hub) RoomSize(roomID string) int {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return 0
	}
	r := v.(*room)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
