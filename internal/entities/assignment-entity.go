package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"laundry-delivery/pkg/constants"
)

// Assignment - назначение водителя на этап заказа (забор или доставка).
type Assignment struct {
	ID         uint64                      `json:"id" db:"id"`
	OrderID    string                      `json:"order_id" db:"order_id"`
	AssignedTo uint64                      `json:"assigned_to" db:"assigned_to"`
	AssignedBy uint64                      `json:"assigned_by" db:"assigned_by"`
	Phase      constants.AssignmentPhase   `json:"phase" db:"phase"`
	Outcome    constants.AssignmentOutcome `json:"outcome" db:"outcome"`
	// InProgress - водитель нажал "начать" и ещё не завершил этап.
	InProgress  bool        `json:"in_progress" db:"in_progress"`
	Reason      null.String `json:"reason" db:"reason"`
	AssignedAt  time.Time   `json:"assigned_at" db:"assigned_at"`
	StartedAt   null.Time   `json:"started_at" db:"started_at"`
	CompletedAt null.Time   `json:"completed_at" db:"completed_at"`
}

// Label - метка вида ASSIGNED_PICKUP / PICKUP_FAILED.
func (a *Assignment) Label() string {
	return constants.AssignStatus(a.Phase, a.Outcome)
}

// IsActive - назначение ещё не завершено и не заменено.
func (a *Assignment) IsActive() bool {
	return a.Outcome == constants.OutcomeAssigned
}

// OrderProcessing - заказ, взятый сотрудником в обработку.
type OrderProcessing struct {
	ID         uint64                     `json:"id" db:"id"`
	OrderID    string                     `json:"order_id" db:"order_id"`
	StaffID    uint64                     `json:"staff_id" db:"staff_id"`
	Status     constants.ProcessingStatus `json:"status" db:"status"`
	Reason     null.String                `json:"reason" db:"reason"`
	ClaimedAt  time.Time                  `json:"claimed_at" db:"claimed_at"`
	ResolvedAt null.Time                  `json:"resolved_at" db:"resolved_at"`
}
