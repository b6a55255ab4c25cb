package listeners

import (
	"context"

	"go.uber.org/zap"

	"laundry-delivery/internal/events"
	"laundry-delivery/internal/services"
	"laundry-delivery/pkg/eventbus"
)

// LocationEvictor - кеш позиций, из которого убираются завершённые заказы.
type LocationEvictor interface {
	Evict(orderID string)
}

// OrderStatusListener доводит смену статуса заказа до комнаты отслеживания
// и чистит кеш позиций по завершённым заказам.
type OrderStatusListener struct {
	rooms  services.RoomNotificationServiceInterface
	cache  LocationEvictor
	logger *zap.Logger
}

func NewOrderStatusListener(
	rooms services.RoomNotificationServiceInterface,
	cache LocationEvictor,
	logger *zap.Logger,
) *OrderStatusListener {
	return &OrderStatusListener{
		rooms:  rooms,
		cache:  cache,
		logger: logger,
	}
}

func (l *OrderStatusListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.OrderStatusChangedEventName, l.handleOrderStatusChanged)
	l.logger.Info("OrderStatusListener подписан на событие", zap.String("event", events.OrderStatusChangedEventName))
}

func (l *OrderStatusListener) handleOrderStatusChanged(_ context.Context, event eventbus.Event) error {
	e, ok := event.(events.OrderStatusChangedEvent)
	if !ok {
		return nil
	}

	l.rooms.NotifyStatusChanged(e.OrderID, e.From, e.To)

	if e.To.IsFinal() {
		l.cache.Evict(e.OrderID)
		l.logger.Debug("позиция заказа удалена из кеша", zap.String("orderID", e.OrderID), zap.String("status", e.To.String()))
	}
	return nil
}
