package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type ListOrdersParams struct {
	Status   *model.OrderStatus
	Customer *string
	// Desc orders by created_at newest first.
	Desc  bool
	Limit int32
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order model.Order) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, updatedAt time.Time) error
	DeleteOrder(ctx context.Context, id string) error
	DeleteAllOrders(ctx context.Context) (int64, error)
}

type orderRepository struct {
	db db.DB
}

func NewOrderRepository(db db.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, customer, status, total_items, total_amount, created_at, updated_at`

func (r orderRepository) CreateOrder(ctx context.Context, order model.Order) error {
	totalAmount, err := numericFromFloat(order.TotalAmount)
	if err != nil {
		return fmt.Errorf("total amount: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (@id, @customer, @status, @total_items, @total_amount, @created_at, @updated_at)
	`, pgx.NamedArgs{
		"id":           order.ID,
		"customer":     order.Customer,
		"status":       string(order.Status),
		"total_items":  order.TotalItems,
		"total_amount": totalAmount,
		"created_at":   order.CreatedAt,
		"updated_at":   order.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

func (r orderRepository) GetOrder(ctx context.Context, id string) (model.Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}

	order, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, apperr.NewOrderNotFound(id)
		}
		return model.Order{}, fmt.Errorf("collect order: %w", err)
	}
	return order, nil
}

func (r orderRepository) ListOrders(ctx context.Context, params ListOrdersParams) ([]model.Order, error) {
	var (
		where []string
		args  = pgx.NamedArgs{}
	)
	if params.Status != nil {
		where = append(where, "status = @status")
		args["status"] = string(*params.Status)
	}
	if params.Customer != nil {
		where = append(where, "customer = @customer")
		args["customer"] = *params.Customer
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at`
	if params.Desc {
		query += ` DESC`
	}
	if params.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = params.Limit
	}

	rows, err := r.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("collect orders: %w", err)
	}
	return orders, nil
}

func (r orderRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = @status, updated_at = @updated_at WHERE id = @id`,
		pgx.NamedArgs{"id": id, "status": string(status), "updated_at": updatedAt})
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewOrderNotFound(id)
	}
	return nil
}

func (r orderRepository) DeleteOrder(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewOrderNotFound(id)
	}
	return nil
}

func (r orderRepository) DeleteAllOrders(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders`)
	if err != nil {
		return 0, fmt.Errorf("delete all orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOrder(row pgx.CollectableRow) (model.Order, error) {
	var (
		o           model.Order
		status      string
		totalAmount pgtype.Numeric
	)
	if err := row.Scan(&o.ID, &o.Customer, &status, &o.TotalItems, &totalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)

	amount, err := numericToFloat(totalAmount)
	if err != nil {
		return model.Order{}, err
	}
	o.TotalAmount = amount

	return o, nil
}
