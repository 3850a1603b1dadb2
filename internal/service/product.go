package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
)

const initialStockReason = "Initial stock"

type CreateProductParams struct {
	Sku          string  `json:"sku" validate:"required,max=64"`
	Name         string  `json:"name" validate:"required,max=255"`
	Category     string  `json:"category" validate:"max=100"`
	Location     string  `json:"location" validate:"max=100"`
	ReorderLevel int     `json:"reorder_level" validate:"gte=0"`
	CostPrice    float64 `json:"cost_price" validate:"gte=0"`
	SellingPrice float64 `json:"selling_price" validate:"gte=0"`
	IsSerialized bool    `json:"is_serialized"`
	// InitialStock applies to non-serialized products only.
	InitialStock int `json:"initial_stock" validate:"gte=0"`
	// Serials are the starting units of a serialized product.
	Serials []string `json:"serials" validate:"omitempty,dive,required,max=128"`
}

type ListProductsParams struct {
	Category     *string
	NamePrefix   *string
	LowStockOnly bool
	OrderBy      repository.ProductOrderBy `validate:"omitempty,oneof=created_at name sku stock"`
	Desc         bool
	Limit        int32 `validate:"gte=0"`
}

type UpdateProductDetailsParams struct {
	ID           string  `validate:"required"`
	Name         string  `validate:"required,max=255"`
	Category     string  `validate:"max=100"`
	Location     string  `validate:"max=100"`
	ReorderLevel int     `validate:"gte=0"`
	CostPrice    float64 `validate:"gte=0"`
	SellingPrice float64 `validate:"gte=0"`
}

// ImportRowResult is the outcome of one imported row. Row is 1-based.
type ImportRowResult struct {
	Row     int            `json:"row"`
	Product *model.Product `json:"product,omitempty"`
	Err     error          `json:"-"`
}

type ImportResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Rows      []ImportRowResult `json:"rows"`
}

// ProductService manages the catalogue. Stock never changes here except
// through the ledger and the serial tracker.
type ProductService struct {
	deps    Deps
	ledger  *StockLedger
	serials *SerialTracker
	guard   *IntegrityGuard
	logger  *slog.Logger
}

func NewProductService(ledger *StockLedger, serials *SerialTracker, guard *IntegrityGuard, deps Deps) *ProductService {
	deps = deps.withDefaults()
	return &ProductService{
		deps:    deps,
		ledger:  ledger,
		serials: serials,
		guard:   guard,
		logger:  deps.Logger.With(slog.String("service", "product")),
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	params.Sku = strings.TrimSpace(params.Sku)
	params.Name = strings.TrimSpace(params.Name)
	if err := s.deps.validate(params); err != nil {
		return model.Product{}, err
	}
	if params.IsSerialized && params.InitialStock > 0 {
		return model.Product{}, apperr.NewValidation("serialized products take serial numbers instead of initial stock")
	}
	if !params.IsSerialized && len(params.Serials) > 0 {
		return model.Product{}, apperr.NewValidation("serial numbers given for a non-serialized product")
	}
	if model.IsGhostProduct("", params.Name, params.Sku) {
		return model.Product{}, apperr.NewValidation("name and sku must not use the archive prefixes")
	}

	if _, err := s.deps.Repos.Products.GetProductBySku(ctx, params.Sku); err == nil {
		return model.Product{}, apperr.DuplicateSkuErr.WithMsg("sku %s already exists", params.Sku)
	} else if !apperr.IsProductNotFound(err) {
		return model.Product{}, fmt.Errorf("product repository get product by sku: %w", err)
	}

	seq, err := s.deps.Repos.Products.NextProductSeq(ctx)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository next product seq: %w", err)
	}

	now := s.deps.Clock()
	product := model.Product{
		ID:           fmt.Sprintf("%s%03d", model.ProductIDPrefix, seq),
		Sku:          params.Sku,
		Name:         params.Name,
		Category:     params.Category,
		Location:     params.Location,
		ReorderLevel: params.ReorderLevel,
		CostPrice:    params.CostPrice,
		SellingPrice: params.SellingPrice,
		IsSerialized: params.IsSerialized,
		Status:       model.ProductStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Repos.Products.CreateProduct(ctx, product); err != nil {
		return model.Product{}, fmt.Errorf("product repository create product: %w", err)
	}
	s.deps.invalidateProducts(ctx)

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("sku", product.Sku),
	)

	switch {
	case params.InitialStock > 0:
		product, err = s.ledger.adjust(ctx, stockChange{
			productID: product.ID,
			delta:     params.InitialStock,
			reason:    initialStockReason,
			origin:    originInitialStock,
		})
		if err != nil {
			return model.Product{}, err
		}
	case len(params.Serials) > 0:
		if _, err := s.serials.AddSerials(ctx, AddSerialsParams{ProductID: product.ID, Serials: params.Serials}); err != nil {
			return model.Product{}, err
		}
		return s.GetProduct(ctx, product.ID)
	}

	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (model.Product, error) {
	product, err := s.deps.Repos.Products.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}
	return product, nil
}

// ListProducts lists live products. The unfiltered listing is served from the
// product list cache when one is configured.
func (s *ProductService) ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error) {
	if err := s.deps.validate(params); err != nil {
		return nil, err
	}

	cacheable := params == (ListProductsParams{})
	if cacheable {
		products, ok, err := s.deps.Cache.GetProducts(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "error reading product list cache", slog.Any("error", err))
		}
		if ok {
			return products, nil
		}
	}

	products, err := s.deps.Repos.Products.ListProducts(ctx, repository.ListProductsParams{
		Status:       ptr.New(model.ProductStatusActive),
		Category:     params.Category,
		NamePrefix:   params.NamePrefix,
		LowStockOnly: params.LowStockOnly,
		OrderBy:      params.OrderBy,
		Desc:         params.Desc,
		Limit:        params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("product repository list products: %w", err)
	}

	if cacheable {
		if err := s.deps.Cache.SetProducts(ctx, products); err != nil {
			s.logger.WarnContext(ctx, "error writing product list cache", slog.Any("error", err))
		}
	}

	return products, nil
}

// ListLowStockProducts returns live products at or below their reorder level,
// lowest stock first.
func (s *ProductService) ListLowStockProducts(ctx context.Context) ([]model.Product, error) {
	return s.ListProducts(ctx, ListProductsParams{
		LowStockOnly: true,
		OrderBy:      repository.ProductOrderByStock,
	})
}

// UpdateProductDetails edits descriptive and commercial fields. Stock is not
// editable here.
func (s *ProductService) UpdateProductDetails(ctx context.Context, params UpdateProductDetailsParams) (model.Product, error) {
	params.Name = strings.TrimSpace(params.Name)
	if err := s.deps.validate(params); err != nil {
		return model.Product{}, err
	}

	product, err := s.deps.Repos.Products.GetProduct(ctx, params.ID)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}
	if product.IsTombstoned() {
		return model.Product{}, apperr.ProductArchivedErr.WithMsg("product %s is archived", product.ID)
	}

	now := s.deps.Clock()
	if err := s.deps.Repos.Products.UpdateProductDetails(ctx, repository.UpdateProductDetailsParams{
		ID:           params.ID,
		Name:         params.Name,
		Category:     params.Category,
		Location:     params.Location,
		ReorderLevel: params.ReorderLevel,
		CostPrice:    params.CostPrice,
		SellingPrice: params.SellingPrice,
		UpdatedAt:    now,
	}); err != nil {
		return model.Product{}, fmt.Errorf("product repository update product details: %w", err)
	}
	s.deps.invalidateProducts(ctx)

	product.Name = params.Name
	product.Category = params.Category
	product.Location = params.Location
	product.ReorderLevel = params.ReorderLevel
	product.CostPrice = params.CostPrice
	product.SellingPrice = params.SellingPrice
	product.UpdatedAt = now

	return product, nil
}

// DeleteProduct deletes a product, replacing it with a ghost when order items
// still refer to it.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (DeleteProductResult, error) {
	result, err := s.guard.deleteProduct(ctx, id)
	if err != nil {
		return DeleteProductResult{}, err
	}
	s.deps.invalidateProducts(ctx)
	return result, nil
}

// ImportProducts creates each row independently. A failed row does not stop
// the import.
func (s *ProductService) ImportProducts(ctx context.Context, rows []CreateProductParams) ImportResult {
	result := ImportResult{Rows: make([]ImportRowResult, 0, len(rows))}
	for i, row := range rows {
		rowResult := ImportRowResult{Row: i + 1}

		product, err := s.CreateProduct(ctx, row)
		if err != nil {
			rowResult.Err = err
			result.Failed++
			if !isDomainError(err) {
				s.logger.WarnContext(ctx, "error importing product row",
					slog.Int("row", i+1),
					slog.String("sku", row.Sku),
					slog.Any("error", err),
				)
			}
		} else {
			rowResult.Product = &product
			result.Succeeded++
		}

		result.Rows = append(result.Rows, rowResult)
	}

	s.logger.InfoContext(ctx, "products imported",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)

	return result
}

func isDomainError(err error) bool {
	var target interface{ Code() string }
	return errors.As(err, &target)
}
