package constants

import "fmt"

// OrderStatus - статус заказа (совпадает со значением в БД).
type OrderStatus string

const (
	OrderStatusInCart            OrderStatus = "IN_CART"
	OrderStatusPending           OrderStatus = "PENDING"
	OrderStatusProcessing        OrderStatus = "PROCESSING"
	OrderStatusConfirmed         OrderStatus = "CONFIRMED"
	OrderStatusScheduledPickup   OrderStatus = "SCHEDULED_PICKUP"
	OrderStatusPickingUp         OrderStatus = "PICKING_UP"
	OrderStatusPickedUp          OrderStatus = "PICKED_UP"
	OrderStatusPickupFailed      OrderStatus = "PICKUP_FAILED"
	OrderStatusScheduledDelivery OrderStatus = "SCHEDULED_DELIVERY"
	OrderStatusDelivering        OrderStatus = "DELIVERING"
	OrderStatusDelivered         OrderStatus = "DELIVERED"
	OrderStatusDeliveryFailed    OrderStatus = "DELIVERY_FAILED"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string { return string(s) }

// IsFinal - из финального статуса переходов нет.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// orderTransitions - полный список допустимых рёбер графа статусов.
// Переход в тот же статус разрешён только для переназначения водителя.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusInCart:            {OrderStatusPending},
	OrderStatusPending:           {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:        {OrderStatusConfirmed, OrderStatusPending, OrderStatusCancelled},
	OrderStatusConfirmed:         {OrderStatusScheduledPickup, OrderStatusCancelled},
	OrderStatusScheduledPickup:   {OrderStatusScheduledPickup, OrderStatusPickingUp, OrderStatusPickupFailed},
	OrderStatusPickingUp:         {OrderStatusPickedUp, OrderStatusPickupFailed},
	OrderStatusPickupFailed:      {OrderStatusScheduledPickup, OrderStatusCancelled},
	OrderStatusPickedUp:          {OrderStatusScheduledDelivery},
	OrderStatusScheduledDelivery: {OrderStatusScheduledDelivery, OrderStatusDelivering, OrderStatusDeliveryFailed},
	OrderStatusDelivering:        {OrderStatusDelivered, OrderStatusDeliveryFailed},
	OrderStatusDeliveryFailed:    {OrderStatusScheduledDelivery},
	OrderStatusDelivered:         {OrderStatusCompleted},
}

// CanTransition проверяет, есть ли ребро from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssignmentPhase - этап, к которому относится назначение водителя.
type AssignmentPhase string

const (
	PhasePickup   AssignmentPhase = "PICKUP"
	PhaseDelivery AssignmentPhase = "DELIVERY"
)

func (p AssignmentPhase) Valid() bool {
	return p == PhasePickup || p == PhaseDelivery
}

// AssignmentOutcome - состояние назначения внутри этапа.
type AssignmentOutcome string

const (
	OutcomeAssigned   AssignmentOutcome = "ASSIGNED"
	OutcomeSuccess    AssignmentOutcome = "SUCCESS"
	OutcomeFailed     AssignmentOutcome = "FAILED"
	OutcomeSuperseded AssignmentOutcome = "SUPERSEDED"
)

// AssignStatus собирает метку вида ASSIGNED_PICKUP / PICKUP_SUCCESS для истории и API.
func AssignStatus(phase AssignmentPhase, outcome AssignmentOutcome) string {
	if outcome == OutcomeAssigned {
		return fmt.Sprintf("%s_%s", outcome, phase)
	}
	return fmt.Sprintf("%s_%s", phase, outcome)
}

// PhaseStatuses - статусы заказа, через которые проходит один этап.
type PhaseStatuses struct {
	// Из каких статусов можно назначить водителя на этап.
	AssignableFrom []OrderStatus
	Scheduled      OrderStatus
	Active         OrderStatus
	Done           OrderStatus
	Failed         OrderStatus
}

var phaseStatuses = map[AssignmentPhase]PhaseStatuses{
	PhasePickup: {
		AssignableFrom: []OrderStatus{OrderStatusConfirmed, OrderStatusScheduledPickup, OrderStatusPickupFailed},
		Scheduled:      OrderStatusScheduledPickup,
		Active:         OrderStatusPickingUp,
		Done:           OrderStatusPickedUp,
		Failed:         OrderStatusPickupFailed,
	},
	PhaseDelivery: {
		AssignableFrom: []OrderStatus{OrderStatusPickedUp, OrderStatusScheduledDelivery, OrderStatusDeliveryFailed},
		Scheduled:      OrderStatusScheduledDelivery,
		Active:         OrderStatusDelivering,
		Done:           OrderStatusDelivered,
		Failed:         OrderStatusDeliveryFailed,
	},
}

// Statuses возвращает статусы заказа для этапа.
func (p AssignmentPhase) Statuses() PhaseStatuses {
	return phaseStatuses[p]
}

// ProcessingStatus - состояние взятия заказа в обработку сотрудником.
type ProcessingStatus string

const (
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusSuccess    ProcessingStatus = "SUCCESS"
	ProcessingStatusFail       ProcessingStatus = "FAIL"
)

// Метки записей истории, не совпадающие со статусом заказа.
const (
	HistoryProcessingExpired = "PROCESSING_EXPIRED"
)
