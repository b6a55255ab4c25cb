package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

// OrderHistory - запись журнала переходов. Не изменяется и не удаляется.
type OrderHistory struct {
	ID      uint64      `json:"id" db:"id"`
	OrderID string      `json:"order_id" db:"order_id"`
	Status  string      `json:"status" db:"status"`
	Notes   null.String `json:"notes" db:"notes"`
	IsFail  bool        `json:"is_fail" db:"is_fail"`
	// ActorID не заполнен для системных переходов (фоновые задачи).
	ActorID   null.Uint64 `json:"actor_id" db:"actor_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	PhotoURLs []string    `json:"photo_urls" db:"-"`
}
