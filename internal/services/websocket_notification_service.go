package services

import (
	"go.uber.org/zap"

	"laundry-delivery/pkg/constants"
	"laundry-delivery/pkg/websocket"
)

// RoomNotificationServiceInterface - рассылка событий заказа в его комнату отслеживания.
type RoomNotificationServiceInterface interface {
	NotifyStatusChanged(orderID string, from, to constants.OrderStatus) int
}

type RoomNotificationService struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewRoomNotificationService(hub *websocket.Hub, logger *zap.Logger) RoomNotificationServiceInterface {
	return &RoomNotificationService{
		hub:    hub,
		logger: logger,
	}
}

// NotifyStatusChanged отправляет orderStatusChanged всем участникам комнаты заказа.
func (s *RoomNotificationService) NotifyStatusChanged(orderID string, from, to constants.OrderStatus) int {
	delivered := s.hub.Broadcast(orderID, websocket.NewEnvelope(websocket.MessageOrderStatusChanged, websocket.StatusChangedPayload{
		OrderID:        orderID,
		Status:         to.String(),
		PreviousStatus: from.String(),
	}), "")
	s.logger.Debug("Отправка WebSocket-уведомления о статусе",
		zap.String("orderID", orderID),
		zap.String("status", to.String()),
		zap.Int("delivered", delivered),
	)
	return delivered
}
