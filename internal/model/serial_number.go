package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SerialStatus string

const (
	SerialStatusAvailable SerialStatus = "available"
	SerialStatusSold      SerialStatus = "sold"
)

// Validate implements the "enum" validation tag.
func (s SerialStatus) Validate() error {
	switch s {
	case SerialStatusAvailable, SerialStatusSold:
		return nil
	default:
		return fmt.Errorf("unknown serial status: %q", string(s))
	}
}

type SerialNumber struct {
	ID           uuid.UUID    `json:"id"`
	ProductID    string       `json:"product_id"`
	SerialNumber string       `json:"serial_number"`
	Status       SerialStatus `json:"status"`
	OrderID      *string      `json:"order_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
