package events

import (
	"time"

	"laundry-delivery/pkg/constants"
)

const OrderStatusChangedEventName = "order.status.changed"

// OrderStatusChangedEvent публикуется после коммита каждого перехода статуса заказа.
type OrderStatusChangedEvent struct {
	OrderID  string
	From     constants.OrderStatus
	To       constants.OrderStatus
	ActorID  uint64 // 0 - системный переход
	Occurred time.Time
}

// Name - реализуем интерфейс eventbus.Event
func (e OrderStatusChangedEvent) Name() string {
	return OrderStatusChangedEventName
}
