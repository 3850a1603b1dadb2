package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type ProductOrderBy string

const (
	ProductOrderByCreatedAt ProductOrderBy = "created_at"
	ProductOrderByName      ProductOrderBy = "name"
	ProductOrderBySku       ProductOrderBy = "sku"
	ProductOrderByStock     ProductOrderBy = "stock"
)

type ListProductsParams struct {
	// Status filters by lifecycle; nil lists every row including tombstones.
	Status     *model.ProductStatus
	Category   *string
	NamePrefix *string
	// LowStockOnly keeps products whose stock is at or below the reorder level.
	LowStockOnly bool
	OrderBy      ProductOrderBy
	Desc         bool
	Limit        int32
}

type UpdateProductDetailsParams struct {
	ID           string
	Name         string
	Category     string
	Location     string
	ReorderLevel int
	CostPrice    float64
	SellingPrice float64
	UpdatedAt    time.Time
}

type UpdateProductStockParams struct {
	ID    string
	Stock int
	// ExpectedStock turns the write into a compare-and-set when non-nil.
	ExpectedStock *int
	UpdatedAt     time.Time
}

type ProductRepository interface {
	NextProductSeq(ctx context.Context) (int64, error)
	CreateProduct(ctx context.Context, product model.Product) error
	GetProduct(ctx context.Context, id string) (model.Product, error)
	GetProductBySku(ctx context.Context, sku string) (model.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error)
	UpdateProductDetails(ctx context.Context, params UpdateProductDetailsParams) error
	// UpdateProductStock reports false when no row matched, which with
	// ExpectedStock set means the stock changed since it was read.
	UpdateProductStock(ctx context.Context, params UpdateProductStockParams) (bool, error)
	DeleteProduct(ctx context.Context, id string) error
	DeleteProducts(ctx context.Context, ids []string) (int64, error)
	DeleteActiveProducts(ctx context.Context) (int64, error)
	ListTombstonedProductIDs(ctx context.Context) ([]string, error)
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, sku, name, category, location, stock, reorder_level,
	cost_price, selling_price, is_serialized, status, created_at, updated_at`

func (r productRepository) NextProductSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('product_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next product seq: %w", err)
	}
	return seq, nil
}

func (r productRepository) CreateProduct(ctx context.Context, product model.Product) error {
	costPrice, err := numericFromFloat(product.CostPrice)
	if err != nil {
		return fmt.Errorf("cost price: %w", err)
	}
	sellingPrice, err := numericFromFloat(product.SellingPrice)
	if err != nil {
		return fmt.Errorf("selling price: %w", err)
	}

	if product.Stock > math.MaxInt32 || product.Stock < 0 {
		return fmt.Errorf("stock out of range: %d", product.Stock)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (@id, @sku, @name, @category, @location, @stock, @reorder_level,
			@cost_price, @selling_price, @is_serialized, @status, @created_at, @updated_at)
	`, pgx.NamedArgs{
		"id":            product.ID,
		"sku":           product.Sku,
		"name":          product.Name,
		"category":      product.Category,
		"location":      product.Location,
		"stock":         product.Stock,
		"reorder_level": product.ReorderLevel,
		"cost_price":    costPrice,
		"selling_price": sellingPrice,
		"is_serialized": product.IsSerialized,
		"status":        string(product.Status),
		"created_at":    product.CreatedAt,
		"updated_at":    product.UpdatedAt,
	})
	if err != nil {
		if isUniqueViolation(err, "products_sku_key") {
			return apperr.DuplicateSkuErr.WithMsg("sku %s already exists", product.Sku)
		}
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r productRepository) GetProduct(ctx context.Context, id string) (model.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, apperr.NewProductNotFound(id)
		}
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (r productRepository) GetProductBySku(ctx context.Context, sku string) (model.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, apperr.ProductNotFoundErr.WithMsg("product with sku %s not found", sku)
		}
		return model.Product{}, fmt.Errorf("get product by sku: %w", err)
	}
	return product, nil
}

func (r productRepository) ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error) {
	var (
		where []string
		args  = pgx.NamedArgs{}
	)
	if params.Status != nil {
		where = append(where, "status = @status")
		args["status"] = string(*params.Status)
	}
	if params.Category != nil {
		where = append(where, "category = @category")
		args["category"] = *params.Category
	}
	if params.NamePrefix != nil {
		where = append(where, "name LIKE @name_prefix")
		args["name_prefix"] = escapeLike(*params.NamePrefix) + "%"
	}
	if params.LowStockOnly {
		where = append(where, "stock <= reorder_level")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + productOrderColumn(params.OrderBy)
	if params.Desc {
		query += ` DESC`
	}
	if params.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = params.Limit
	}

	rows, err := r.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r productRepository) UpdateProductDetails(ctx context.Context, params UpdateProductDetailsParams) error {
	costPrice, err := numericFromFloat(params.CostPrice)
	if err != nil {
		return fmt.Errorf("cost price: %w", err)
	}
	sellingPrice, err := numericFromFloat(params.SellingPrice)
	if err != nil {
		return fmt.Errorf("selling price: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET name          = @name,
			category      = @category,
			location      = @location,
			reorder_level = @reorder_level,
			cost_price    = @cost_price,
			selling_price = @selling_price,
			updated_at    = @updated_at
		WHERE id = @id
	`, pgx.NamedArgs{
		"id":            params.ID,
		"name":          params.Name,
		"category":      params.Category,
		"location":      params.Location,
		"reorder_level": params.ReorderLevel,
		"cost_price":    costPrice,
		"selling_price": sellingPrice,
		"updated_at":    params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update product details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewProductNotFound(params.ID)
	}

	return nil
}

func (r productRepository) UpdateProductStock(ctx context.Context, params UpdateProductStockParams) (bool, error) {
	query := `UPDATE products SET stock = @stock, updated_at = @updated_at WHERE id = @id`
	args := pgx.NamedArgs{
		"id":         params.ID,
		"stock":      params.Stock,
		"updated_at": params.UpdatedAt,
	}
	if params.ExpectedStock != nil {
		query += ` AND stock = @expected_stock`
		args["expected_stock"] = *params.ExpectedStock
	}

	tag, err := r.db.Exec(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("update product stock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r productRepository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewProductNotFound(id)
	}
	return nil
}

func (r productRepository) DeleteProducts(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = ANY(@ids)`, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r productRepository) DeleteActiveProducts(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE status = @status`,
		pgx.NamedArgs{"status": string(model.ProductStatusActive)})
	if err != nil {
		return 0, fmt.Errorf("delete active products: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r productRepository) ListTombstonedProductIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM products WHERE status = @status ORDER BY id`,
		pgx.NamedArgs{"status": string(model.ProductStatusTombstoned)})
	if err != nil {
		return nil, fmt.Errorf("list tombstoned product ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect tombstoned product ids: %w", err)
	}
	return ids, nil
}

func productOrderColumn(orderBy ProductOrderBy) string {
	switch orderBy {
	case ProductOrderByName, ProductOrderBySku, ProductOrderByStock:
		return string(orderBy)
	default:
		return string(ProductOrderByCreatedAt)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p            model.Product
		status       string
		costPrice    pgtype.Numeric
		sellingPrice pgtype.Numeric
	)
	if err := row.Scan(&p.ID, &p.Sku, &p.Name, &p.Category, &p.Location, &p.Stock, &p.ReorderLevel,
		&costPrice, &sellingPrice, &p.IsSerialized, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Product{}, err
	}
	p.Status = model.ProductStatus(status)

	var err error
	if p.CostPrice, err = numericToFloat(costPrice); err != nil {
		return model.Product{}, err
	}
	if p.SellingPrice, err = numericToFloat(sellingPrice); err != nil {
		return model.Product{}, err
	}

	return p, nil
}
