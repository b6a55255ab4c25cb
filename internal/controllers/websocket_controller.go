// internal/controllers/websocket_controller.go

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"laundry-delivery/internal/services"
	"laundry-delivery/pkg/utils"
	appwebsocket "laundry-delivery/pkg/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketController struct {
	tracking       services.TrackingServiceInterface
	messageTimeout time.Duration
	logger         *zap.Logger
}

func NewWebSocketController(tracking services.TrackingServiceInterface, messageTimeout time.Duration, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{
		tracking:       tracking,
		messageTimeout: messageTimeout,
		logger:         logger,
	}
}

// ServeWs поднимает соединение отслеживания. Пользователь уже проверен AuthQuery.
func (c *WebSocketController) ServeWs(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Error("WebSocket: не удалось улучшить соединение", zap.Error(err))
		return nil
	}

	client := appwebsocket.NewClient(conn, userID, c.logger)
	go client.WritePump()
	go client.ReadPump(
		func(cl *appwebsocket.Client, data []byte) {
			msgCtx, cancel := context.WithTimeout(context.Background(), c.messageTimeout)
			defer cancel()
			c.tracking.HandleMessage(msgCtx, cl, cl.UserID, data)
		},
		func(cl *appwebsocket.Client) {
			c.tracking.Disconnect(cl.ID())
		},
	)

	c.logger.Info("WebSocket: клиент подключен", zap.Uint64("userID", userID), zap.String("conn", client.ID()))
	return nil
}
