package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type OrderItemRepository interface {
	CreateOrderItem(ctx context.Context, item model.OrderItem) error
	ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error)
	CountOrderItemsByProduct(ctx context.Context, productID string) (int, error)
	// ListReferencedProductIDs returns the distinct product ids of every order item.
	ListReferencedProductIDs(ctx context.Context) ([]string, error)
	RepointOrderItems(ctx context.Context, fromProductID, toProductID string) (int64, error)
	DeleteOrderItems(ctx context.Context, orderID string) (int64, error)
	DeleteAllOrderItems(ctx context.Context) (int64, error)
}

type orderItemRepository struct {
	db db.DB
}

func NewOrderItemRepository(db db.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r orderItemRepository) CreateOrderItem(ctx context.Context, item model.OrderItem) error {
	price, err := numericFromFloat(item.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES (@id, @order_id, @product_id, @quantity, @price)
	`, pgx.NamedArgs{
		"id":         item.ID,
		"order_id":   item.OrderID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"price":      price,
	}); err != nil {
		return fmt.Errorf("create order item: %w", err)
	}

	return nil
}

func (r orderItemRepository) ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.OrderItem, error) {
		var (
			i     model.OrderItem
			price pgtype.Numeric
		)
		if err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &price); err != nil {
			return model.OrderItem{}, err
		}
		p, err := numericToFloat(price)
		i.Price = p
		return i, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect order items: %w", err)
	}
	return items, nil
}

func (r orderItemRepository) CountOrderItemsByProduct(ctx context.Context, productID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE product_id = $1`, productID).
		Scan(&count); err != nil {
		return 0, fmt.Errorf("count order items by product: %w", err)
	}
	return count, nil
}

func (r orderItemRepository) ListReferencedProductIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT product_id FROM order_items ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("list referenced product ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect referenced product ids: %w", err)
	}
	return ids, nil
}

func (r orderItemRepository) RepointOrderItems(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE order_items SET product_id = @to WHERE product_id = @from`,
		pgx.NamedArgs{"from": fromProductID, "to": toProductID})
	if err != nil {
		return 0, fmt.Errorf("repoint order items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r orderItemRepository) DeleteOrderItems(ctx context.Context, orderID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, fmt.Errorf("delete order items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r orderItemRepository) DeleteAllOrderItems(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM order_items`)
	if err != nil {
		return 0, fmt.Errorf("delete all order items: %w", err)
	}
	return tag.RowsAffected(), nil
}
