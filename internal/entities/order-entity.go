package entities

import (
	"time"

	"laundry-delivery/pkg/constants"
)

// Order - заказ на стирку. ID назначается бизнесом (например, "LD-20240101-0001").
type Order struct {
	ID      string `json:"id" db:"id"`
	OwnerID uint64 `json:"owner_id" db:"owner_id"`

	PickupAddress   string  `json:"pickup_address" db:"pickup_address"`
	PickupLat       float64 `json:"pickup_lat" db:"pickup_lat"`
	PickupLng       float64 `json:"pickup_lng" db:"pickup_lng"`
	DeliveryAddress string  `json:"delivery_address" db:"delivery_address"`
	DeliveryLat     float64 `json:"delivery_lat" db:"delivery_lat"`
	DeliveryLng     float64 `json:"delivery_lng" db:"delivery_lng"`

	Status    constants.OrderStatus `json:"status" db:"status"`
	Emergency bool                  `json:"emergency" db:"emergency"`
	// Version увеличивается при каждой смене статуса.
	Version int64 `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
