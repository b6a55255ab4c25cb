// Файл: internal/entities/user_entity.go
package entities

import (
	"time"

	"laundry-delivery/pkg/constants"
)

type User struct {
	ID          uint64         `json:"id" db:"id"`
	Fio         string         `json:"fio" db:"fio"`
	PhoneNumber string         `json:"phone_number" db:"phone_number"`
	Role        constants.Role `json:"role" db:"role"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
