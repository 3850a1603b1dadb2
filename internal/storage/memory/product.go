package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
)

func (s *Store) NextProductSeq(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productSeq++
	return s.productSeq, nil
}

func (s *Store) CreateProduct(_ context.Context, product model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return fmt.Errorf("create product: duplicate id %s", product.ID)
	}
	for _, p := range s.products {
		if p.Sku == product.Sku {
			return apperr.DuplicateSkuErr.WithMsg("sku %s already exists", product.Sku)
		}
	}
	if product.Stock < 0 {
		return fmt.Errorf("create product: stock out of range: %d", product.Stock)
	}

	s.products[product.ID] = product
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return model.Product{}, apperr.NewProductNotFound(id)
	}
	return p, nil
}

func (s *Store) GetProductBySku(_ context.Context, sku string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Sku == sku {
			return p, nil
		}
	}
	return model.Product{}, apperr.ProductNotFoundErr.WithMsg("product with sku %s not found", sku)
}

func (s *Store) ListProducts(_ context.Context, params repository.ListProductsParams) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := []model.Product{}
	for _, p := range s.products {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.Category != nil && p.Category != *params.Category {
			continue
		}
		if params.NamePrefix != nil && !strings.HasPrefix(p.Name, *params.NamePrefix) {
			continue
		}
		if params.LowStockOnly && p.Stock > p.ReorderLevel {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b model.Product) int {
		var c int
		switch params.OrderBy {
		case repository.ProductOrderByName:
			c = cmp.Compare(a.Name, b.Name)
		case repository.ProductOrderBySku:
			c = cmp.Compare(a.Sku, b.Sku)
		case repository.ProductOrderByStock:
			c = cmp.Compare(a.Stock, b.Stock)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if params.Desc {
			return -c
		}
		return c
	})

	return limit(products, params.Limit), nil
}

func (s *Store) UpdateProductDetails(_ context.Context, params repository.UpdateProductDetailsParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[params.ID]
	if !ok {
		return apperr.NewProductNotFound(params.ID)
	}
	p.Name = params.Name
	p.Category = params.Category
	p.Location = params.Location
	p.ReorderLevel = params.ReorderLevel
	p.CostPrice = params.CostPrice
	p.SellingPrice = params.SellingPrice
	p.UpdatedAt = params.UpdatedAt
	s.products[params.ID] = p

	return nil
}

func (s *Store) UpdateProductStock(_ context.Context, params repository.UpdateProductStockParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[params.ID]
	if !ok {
		return false, nil
	}
	if params.ExpectedStock != nil && p.Stock != *params.ExpectedStock {
		return false, nil
	}
	if params.Stock < 0 {
		return false, fmt.Errorf("update product stock: check constraint violated: %d", params.Stock)
	}
	p.Stock = params.Stock
	p.UpdatedAt = params.UpdatedAt
	s.products[params.ID] = p

	return true, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return apperr.NewProductNotFound(id)
	}
	if err := s.deleteProductLocked(id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (s *Store) DeleteProducts(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if err := s.checkProductUnreferencedLocked(id); err != nil {
			return 0, fmt.Errorf("delete products: %w", err)
		}
	}

	var n int64
	for _, id := range ids {
		if _, ok := s.products[id]; !ok {
			continue
		}
		if err := s.deleteProductLocked(id); err != nil {
			return n, fmt.Errorf("delete products: %w", err)
		}
		n++
	}
	return n, nil
}

func (s *Store) DeleteActiveProducts(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, p := range s.products {
		if p.Status == model.ProductStatusActive {
			if err := s.checkProductUnreferencedLocked(id); err != nil {
				return 0, fmt.Errorf("delete active products: %w", err)
			}
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if err := s.deleteProductLocked(id); err != nil {
			return 0, fmt.Errorf("delete active products: %w", err)
		}
	}
	return int64(len(ids)), nil
}

func (s *Store) ListTombstonedProductIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for id, p := range s.products {
		if p.Status == model.ProductStatusTombstoned {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// checkProductUnreferencedLocked mirrors the order_items foreign key.
func (s *Store) checkProductUnreferencedLocked(id string) error {
	for _, item := range s.orderItems {
		if item.ProductID == id {
			return fmt.Errorf("product %s is still referenced by order item %s", id, item.ID)
		}
	}
	return nil
}

// deleteProductLocked removes the product and cascades to its ledger rows and
// serial numbers.
func (s *Store) deleteProductLocked(id string) error {
	if err := s.checkProductUnreferencedLocked(id); err != nil {
		return err
	}
	delete(s.products, id)
	for adjID, a := range s.adjustments {
		if a.ProductID == id {
			delete(s.adjustments, adjID)
		}
	}
	for serialID, sn := range s.serials {
		if sn.ProductID == id {
			delete(s.serials, serialID)
		}
	}
	return nil
}

func limit[T any](items []T, n int32) []T {
	if n > 0 && int(n) < len(items) {
		return items[:n]
	}
	return items
}
