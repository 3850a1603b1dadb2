package model

import (
	"fmt"
	"slices"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatusSuccessors = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// Validate implements the "enum" validation tag.
func (s OrderStatus) Validate() error {
	if _, ok := orderStatusSuccessors[s]; !ok {
		return fmt.Errorf("unknown order status: %q", string(s))
	}
	return nil
}

// AllowedNext returns the statuses s may move to, in declaration order.
func (s OrderStatus) AllowedNext() []OrderStatus {
	return slices.Clone(orderStatusSuccessors[s])
}

// CanTransition reports whether from -> to is an edge of the order status graph.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderStatusSuccessors[from], to)
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(orderStatusSuccessors[s]) == 0
}

type Order struct {
	ID          string      `json:"id"`
	Customer    string      `json:"customer"`
	Status      OrderStatus `json:"status"`
	TotalItems  int         `json:"total_items"`
	TotalAmount float64     `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem is a line of an order. Price is the unit price captured when the
// order was placed and is never recomputed.
type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Subtotal returns quantity × unit price.
func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.Price
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}
