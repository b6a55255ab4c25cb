package dto

import (
	"time"

	"laundry-delivery/internal/entities"
)

type CreateOrderDTO struct {
	PickupAddress   string  `json:"pickup_address" validate:"required,address,max=255"`
	PickupLat       float64 `json:"pickup_lat" validate:"latitude"`
	PickupLng       float64 `json:"pickup_lng" validate:"longitude"`
	DeliveryAddress string  `json:"delivery_address" validate:"required,address,max=255"`
	DeliveryLat     float64 `json:"delivery_lat" validate:"latitude"`
	DeliveryLng     float64 `json:"delivery_lng" validate:"longitude"`
	Emergency       bool    `json:"emergency"`
}

// NotesDTO - необязательный комментарий к переходу.
type NotesDTO struct {
	Notes string `json:"notes" validate:"omitempty,max=1000"`
}

type CancelOrderDTO struct {
	Notes string `json:"notes" validate:"required,reason_text,max=1000"`
}

type AssignDriverDTO struct {
	DriverID uint64 `json:"driver_id" validate:"required,gt=0"`
	Phase    string `json:"phase" validate:"required,oneof=PICKUP DELIVERY pickup delivery"`
}

type OrderResponseDTO struct {
	ID              string  `json:"id"`
	OwnerID         uint64  `json:"owner_id"`
	PickupAddress   string  `json:"pickup_address"`
	PickupLat       float64 `json:"pickup_lat"`
	PickupLng       float64 `json:"pickup_lng"`
	DeliveryAddress string  `json:"delivery_address"`
	DeliveryLat     float64 `json:"delivery_lat"`
	DeliveryLng     float64 `json:"delivery_lng"`
	Status          string  `json:"status"`
	Emergency       bool    `json:"emergency"`
	Version         int64   `json:"version"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func NewOrderResponse(o *entities.Order) OrderResponseDTO {
	return OrderResponseDTO{
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		PickupAddress:   o.PickupAddress,
		PickupLat:       o.PickupLat,
		PickupLng:       o.PickupLng,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryLat:     o.DeliveryLat,
		DeliveryLng:     o.DeliveryLng,
		Status:          o.Status.String(),
		Emergency:       o.Emergency,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
}
