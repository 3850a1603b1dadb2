package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type ListStockAdjustmentsParams struct {
	ProductID string
	Limit     int32
}

type StockAdjustmentRepository interface {
	NextAdjustmentSeq(ctx context.Context) (int64, error)
	CreateStockAdjustment(ctx context.Context, adjustment model.StockAdjustment) error
	// ListStockAdjustments returns the newest rows first.
	ListStockAdjustments(ctx context.Context, params ListStockAdjustmentsParams) ([]model.StockAdjustment, error)
	RepointStockAdjustments(ctx context.Context, fromProductID, toProductID string) (int64, error)
	DeleteAllStockAdjustments(ctx context.Context) (int64, error)
}

type stockAdjustmentRepository struct {
	db db.DB
}

func NewStockAdjustmentRepository(db db.DB) StockAdjustmentRepository {
	return &stockAdjustmentRepository{db: db}
}

func (r stockAdjustmentRepository) NextAdjustmentSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('stock_adjustment_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next stock adjustment seq: %w", err)
	}
	return seq, nil
}

func (r stockAdjustmentRepository) CreateStockAdjustment(ctx context.Context, adjustment model.StockAdjustment) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO stock_adjustments (id, product_id, quantity, adjustment_type, reason,
			previous_quantity, new_quantity, created_at)
		VALUES (@id, @product_id, @quantity, @adjustment_type, @reason,
			@previous_quantity, @new_quantity, @created_at)
	`, pgx.NamedArgs{
		"id":                adjustment.ID,
		"product_id":        adjustment.ProductID,
		"quantity":          adjustment.Quantity,
		"adjustment_type":   string(adjustment.AdjustmentType),
		"reason":            adjustment.Reason,
		"previous_quantity": adjustment.PreviousQuantity,
		"new_quantity":      adjustment.NewQuantity,
		"created_at":        adjustment.CreatedAt,
	}); err != nil {
		return fmt.Errorf("create stock adjustment: %w", err)
	}

	return nil
}

func (r stockAdjustmentRepository) ListStockAdjustments(ctx context.Context, params ListStockAdjustmentsParams) ([]model.StockAdjustment, error) {
	query := `
		SELECT id, product_id, quantity, adjustment_type, reason, previous_quantity, new_quantity, created_at
		FROM stock_adjustments
		WHERE product_id = @product_id
		ORDER BY created_at DESC, id DESC`
	args := pgx.NamedArgs{"product_id": params.ProductID}
	if params.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = params.Limit
	}

	rows, err := r.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list stock adjustments: %w", err)
	}

	adjustments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StockAdjustment, error) {
		var (
			a       model.StockAdjustment
			adjType string
		)
		err := row.Scan(&a.ID, &a.ProductID, &a.Quantity, &adjType, &a.Reason,
			&a.PreviousQuantity, &a.NewQuantity, &a.CreatedAt)
		a.AdjustmentType = model.AdjustmentType(adjType)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect stock adjustments: %w", err)
	}

	return adjustments, nil
}

func (r stockAdjustmentRepository) RepointStockAdjustments(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE stock_adjustments SET product_id = @to WHERE product_id = @from`,
		pgx.NamedArgs{"from": fromProductID, "to": toProductID})
	if err != nil {
		return 0, fmt.Errorf("repoint stock adjustments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r stockAdjustmentRepository) DeleteAllStockAdjustments(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM stock_adjustments`)
	if err != nil {
		return 0, fmt.Errorf("delete all stock adjustments: %w", err)
	}
	return tag.RowsAffected(), nil
}
