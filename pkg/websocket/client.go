package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// Client - одно WebSocket-соединение пользователя.
type Client struct {
	id     string
	Conn   *websocket.Conn
	UserID uint64

	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func NewClient(conn *websocket.Conn, userID uint64, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		Conn:   conn,
		UserID: userID,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("conn", id), zap.Uint64("userID", userID)),
	}
}

func (c *Client) ID() string { return c.id }

// Send ставит сообщение в очередь. false - соединение закрыто или не успевает читать.
func (c *Client) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Close можно вызывать многократно и из любой горутины.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ReadPump читает сообщения клиента до ошибки или закрытия и передаёт их в onMessage.
// onClose вызывается ровно один раз при выходе.
func (c *Client) ReadPump(onMessage func(c *Client, data []byte), onClose func(c *Client)) {
	defer func() {
		onClose(c)
		c.Close()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("соединение закрыто с ошибкой", zap.Error(err))
			}
			return
		}
		onMessage(c, data)
	}
}

// WritePump отправляет сообщения из очереди и пинги. После Close дописывает
// уже поставленные в очередь сообщения и закрывает соединение.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			c.drain()
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}
