package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/stock-ledger/internal/http/apierr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

type ProductService interface {
	CreateProduct(ctx context.Context, params service.CreateProductParams) (model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	ListProducts(ctx context.Context, params service.ListProductsParams) ([]model.Product, error)
	ListLowStockProducts(ctx context.Context) ([]model.Product, error)
	UpdateProductDetails(ctx context.Context, params service.UpdateProductDetailsParams) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) (service.DeleteProductResult, error)
	ImportProducts(ctx context.Context, rows []service.CreateProductParams) service.ImportResult
}

type updateProductRequest struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	ReorderLevel int     `json:"reorder_level"`
	CostPrice    float64 `json:"cost_price"`
	SellingPrice float64 `json:"selling_price"`
}

type importRowResponse struct {
	Row     int                   `json:"row"`
	Product *model.Product        `json:"product,omitempty"`
	Error   *apierr.ErrorResponse `json:"error,omitempty"`
}

type importResponse struct {
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Rows      []importRowResponse `json:"rows"`
}

type productHandler struct {
	*Service
	productSvc ProductService
}

func newProductHandler(s *Service, productSvc ProductService) *productHandler {
	return &productHandler{Service: s, productSvc: productSvc}
}

func (h *productHandler) register(r chi.Router) {
	r.Get("/products", h.handle(h.listProducts))
	r.Post("/products", h.handle(h.createProduct))
	r.Post("/products/import", h.handle(h.importProducts))
	r.Get("/products/low-stock", h.handle(h.listLowStockProducts))
	r.Get("/products/{productId}", h.handle(h.getProduct))
	r.Put("/products/{productId}", h.handle(h.updateProductDetails))
	r.Delete("/products/{productId}", h.handle(h.deleteProduct))
}

func (h *productHandler) listProducts(w http.ResponseWriter, r *http.Request) error {
	lowStock, err := queryBool(r, "low_stock")
	if err != nil {
		return err
	}
	desc, err := queryBool(r, "desc")
	if err != nil {
		return err
	}
	limit, err := queryInt32(r, "limit")
	if err != nil {
		return err
	}

	params := service.ListProductsParams{
		Category:     queryString(r, "category"),
		NamePrefix:   queryString(r, "name_prefix"),
		LowStockOnly: lowStock,
		OrderBy:      repository.ProductOrderBy(r.URL.Query().Get("order_by")),
		Desc:         desc,
		Limit:        limit,
	}
	products, err := h.productSvc.ListProducts(r.Context(), params)
	if err != nil {
		return fmt.Errorf("product service list products: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, products)
	return nil
}

func (h *productHandler) createProduct(w http.ResponseWriter, r *http.Request) error {
	var params service.CreateProductParams
	if err := decodeBody(r, &params); err != nil {
		return err
	}

	product, err := h.productSvc.CreateProduct(r.Context(), params)
	if err != nil {
		return fmt.Errorf("product service create product: %w", err)
	}

	h.writeJSON(w, r, http.StatusCreated, product)
	return nil
}

func (h *productHandler) importProducts(w http.ResponseWriter, r *http.Request) error {
	var rows []service.CreateProductParams
	if err := decodeBody(r, &rows); err != nil {
		return err
	}

	result := h.productSvc.ImportProducts(r.Context(), rows)

	res := importResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Rows:      make([]importRowResponse, 0, len(result.Rows)),
	}
	for _, row := range result.Rows {
		item := importRowResponse{Row: row.Row, Product: row.Product}
		if row.Err != nil {
			errRes := apierr.New(row.Err)
			item.Error = &errRes
		}
		res.Rows = append(res.Rows, item)
	}

	h.writeJSON(w, r, http.StatusOK, res)
	return nil
}

func (h *productHandler) listLowStockProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := h.productSvc.ListLowStockProducts(r.Context())
	if err != nil {
		return fmt.Errorf("product service list low stock products: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, products)
	return nil
}

func (h *productHandler) getProduct(w http.ResponseWriter, r *http.Request) error {
	product, err := h.productSvc.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		return fmt.Errorf("product service get product: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, product)
	return nil
}

func (h *productHandler) updateProductDetails(w http.ResponseWriter, r *http.Request) error {
	var req updateProductRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	product, err := h.productSvc.UpdateProductDetails(r.Context(), service.UpdateProductDetailsParams{
		ID:           chi.URLParam(r, "productId"),
		Name:         req.Name,
		Category:     req.Category,
		Location:     req.Location,
		ReorderLevel: req.ReorderLevel,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
	})
	if err != nil {
		return fmt.Errorf("product service update product details: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, product)
	return nil
}

func (h *productHandler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	result, err := h.productSvc.DeleteProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		return fmt.Errorf("product service delete product: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, result)
	return nil
}
