package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type ListSerialNumbersParams struct {
	ProductID *string
	Status    *model.SerialStatus
	OrderID   *string
}

type SerialNumberRepository interface {
	CreateSerialNumbers(ctx context.Context, serials []model.SerialNumber) error
	GetSerialNumber(ctx context.Context, id uuid.UUID) (model.SerialNumber, error)
	ListSerialNumbers(ctx context.Context, params ListSerialNumbersParams) ([]model.SerialNumber, error)
	CountAvailableSerialNumbers(ctx context.Context, productID string) (int, error)
	// MarkSerialNumbersSold flips only rows that are currently available and
	// returns how many were flipped.
	MarkSerialNumbersSold(ctx context.Context, ids []uuid.UUID, orderID string, at time.Time) (int64, error)
	MarkSerialNumbersAvailable(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
	RepointSoldSerialNumbers(ctx context.Context, fromProductID, toProductID string) (int64, error)
	DeleteSerialNumber(ctx context.Context, id uuid.UUID) error
}

type serialNumberRepository struct {
	db db.DB
}

func NewSerialNumberRepository(db db.DB) SerialNumberRepository {
	return &serialNumberRepository{db: db}
}

const serialNumberColumns = `id, product_id, serial_number, status, order_id, created_at, updated_at`

// CreateSerialNumbers inserts every row in one statement so a duplicate
// rejects the whole batch.
func (r serialNumberRepository) CreateSerialNumbers(ctx context.Context, serials []model.SerialNumber) error {
	if len(serials) == 0 {
		return nil
	}

	var (
		ids       = make([]uuid.UUID, 0, len(serials))
		products  = make([]string, 0, len(serials))
		numbers   = make([]string, 0, len(serials))
		statuses  = make([]string, 0, len(serials))
		createdAt = make([]time.Time, 0, len(serials))
	)
	for _, s := range serials {
		ids = append(ids, s.ID)
		products = append(products, s.ProductID)
		numbers = append(numbers, s.SerialNumber)
		statuses = append(statuses, string(s.Status))
		createdAt = append(createdAt, s.CreatedAt)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO serial_numbers (id, product_id, serial_number, status, order_id, created_at, updated_at)
		SELECT id, product_id, serial_number, status, NULL, created_at, created_at
		FROM UNNEST(@ids::uuid[], @products::text[], @numbers::text[], @statuses::text[], @created_at::timestamptz[])
			AS t(id, product_id, serial_number, status, created_at)
	`, pgx.NamedArgs{
		"ids":        ids,
		"products":   products,
		"numbers":    numbers,
		"statuses":   statuses,
		"created_at": createdAt,
	})
	if err != nil {
		if isUniqueViolation(err, "serial_numbers_product_id_serial_number_key") {
			return apperr.DuplicateSerialErr.WrapParent(err)
		}
		return fmt.Errorf("create serial numbers: %w", err)
	}

	return nil
}

func (r serialNumberRepository) GetSerialNumber(ctx context.Context, id uuid.UUID) (model.SerialNumber, error) {
	rows, err := r.db.Query(ctx, `SELECT `+serialNumberColumns+` FROM serial_numbers WHERE id = $1`, id)
	if err != nil {
		return model.SerialNumber{}, fmt.Errorf("get serial number: %w", err)
	}

	serial, err := pgx.CollectExactlyOneRow(rows, scanSerialNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SerialNumber{}, apperr.SerialNotFoundErr.WithMsg("serial number %s not found", id)
		}
		return model.SerialNumber{}, fmt.Errorf("collect serial number: %w", err)
	}
	return serial, nil
}

func (r serialNumberRepository) ListSerialNumbers(ctx context.Context, params ListSerialNumbersParams) ([]model.SerialNumber, error) {
	var (
		where []string
		args  = pgx.NamedArgs{}
	)
	if params.ProductID != nil {
		where = append(where, "product_id = @product_id")
		args["product_id"] = *params.ProductID
	}
	if params.Status != nil {
		where = append(where, "status = @status")
		args["status"] = string(*params.Status)
	}
	if params.OrderID != nil {
		where = append(where, "order_id = @order_id")
		args["order_id"] = *params.OrderID
	}

	query := `SELECT ` + serialNumberColumns + ` FROM serial_numbers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY serial_number`

	rows, err := r.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list serial numbers: %w", err)
	}

	serials, err := pgx.CollectRows(rows, scanSerialNumber)
	if err != nil {
		return nil, fmt.Errorf("collect serial numbers: %w", err)
	}
	return serials, nil
}

func (r serialNumberRepository) CountAvailableSerialNumbers(ctx context.Context, productID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM serial_numbers WHERE product_id = @product_id AND status = @status
	`, pgx.NamedArgs{
		"product_id": productID,
		"status":     string(model.SerialStatusAvailable),
	}).Scan(&count); err != nil {
		return 0, fmt.Errorf("count available serial numbers: %w", err)
	}
	return count, nil
}

func (r serialNumberRepository) MarkSerialNumbersSold(ctx context.Context, ids []uuid.UUID, orderID string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE serial_numbers
		SET status = @sold, order_id = @order_id, updated_at = @at
		WHERE id = ANY(@ids) AND status = @available
	`, pgx.NamedArgs{
		"ids":       ids,
		"order_id":  orderID,
		"at":        at,
		"sold":      string(model.SerialStatusSold),
		"available": string(model.SerialStatusAvailable),
	})
	if err != nil {
		return 0, fmt.Errorf("mark serial numbers sold: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r serialNumberRepository) MarkSerialNumbersAvailable(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE serial_numbers
		SET status = @available, order_id = NULL, updated_at = @at
		WHERE id = ANY(@ids)
	`, pgx.NamedArgs{
		"ids":       ids,
		"at":        at,
		"available": string(model.SerialStatusAvailable),
	})
	if err != nil {
		return 0, fmt.Errorf("mark serial numbers available: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r serialNumberRepository) RepointSoldSerialNumbers(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE serial_numbers SET product_id = @to WHERE product_id = @from AND status = @sold
	`, pgx.NamedArgs{
		"from": fromProductID,
		"to":   toProductID,
		"sold": string(model.SerialStatusSold),
	})
	if err != nil {
		return 0, fmt.Errorf("repoint sold serial numbers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r serialNumberRepository) DeleteSerialNumber(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM serial_numbers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete serial number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.SerialNotFoundErr.WithMsg("serial number %s not found", id)
	}
	return nil
}

func scanSerialNumber(row pgx.CollectableRow) (model.SerialNumber, error) {
	var (
		s      model.SerialNumber
		status string
	)
	err := row.Scan(&s.ID, &s.ProductID, &s.SerialNumber, &status, &s.OrderID, &s.CreatedAt, &s.UpdatedAt)
	s.Status = model.SerialStatus(status)
	return s, err
}
