package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

type StockService interface {
	AdjustStock(ctx context.Context, params service.AdjustStockParams) (model.Product, error)
	ListStockAdjustments(ctx context.Context, params service.ListStockAdjustmentsParams) ([]model.StockAdjustment, error)
}

type adjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type stockHandler struct {
	*Service
	stockSvc StockService
}

func newStockHandler(s *Service, stockSvc StockService) *stockHandler {
	return &stockHandler{Service: s, stockSvc: stockSvc}
}

func (h *stockHandler) register(r chi.Router) {
	r.Post("/products/{productId}/adjustments", h.handle(h.adjustStock))
	r.Get("/products/{productId}/adjustments", h.handle(h.listStockAdjustments))
}

func (h *stockHandler) adjustStock(w http.ResponseWriter, r *http.Request) error {
	var req adjustStockRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	product, err := h.stockSvc.AdjustStock(r.Context(), service.AdjustStockParams{
		ProductID: chi.URLParam(r, "productId"),
		Delta:     req.Delta,
		Reason:    req.Reason,
	})
	if err != nil {
		return fmt.Errorf("stock ledger adjust stock: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, product)
	return nil
}

func (h *stockHandler) listStockAdjustments(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt32(r, "limit")
	if err != nil {
		return err
	}

	adjustments, err := h.stockSvc.ListStockAdjustments(r.Context(), service.ListStockAdjustmentsParams{
		ProductID: chi.URLParam(r, "productId"),
		Limit:     limit,
	})
	if err != nil {
		return fmt.Errorf("stock ledger list stock adjustments: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, adjustments)
	return nil
}
