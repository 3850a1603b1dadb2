package model

import (
	"fmt"
	"time"
)

type AdjustmentType string

const (
	AdjustmentTypeIn  AdjustmentType = "in"
	AdjustmentTypeOut AdjustmentType = "out"
)

// StockAdjustment is an append-only ledger row. Quantity is always a positive
// magnitude; the direction is carried by Type.
type StockAdjustment struct {
	ID               string         `json:"id"`
	ProductID        string         `json:"product_id"`
	Quantity         int            `json:"quantity"`
	AdjustmentType   AdjustmentType `json:"adjustment_type"`
	Reason           string         `json:"reason"`
	PreviousQuantity int            `json:"previous_quantity"`
	NewQuantity      int            `json:"new_quantity"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SignedDelta returns the stock change the row records.
func (a StockAdjustment) SignedDelta() int {
	if a.AdjustmentType == AdjustmentTypeOut {
		return -a.Quantity
	}
	return a.Quantity
}

// Validate checks that the row's quantities chain.
func (a StockAdjustment) Validate() error {
	if a.Quantity <= 0 {
		return fmt.Errorf("adjustment quantity must be positive, got %d", a.Quantity)
	}
	if a.PreviousQuantity+a.SignedDelta() != a.NewQuantity {
		return fmt.Errorf("adjustment %s does not chain: %d %s %d != %d",
			a.ID, a.PreviousQuantity, a.AdjustmentType, a.Quantity, a.NewQuantity)
	}
	return nil
}
