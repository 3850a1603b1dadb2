package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

type BulkService interface {
	ClearAllInventory(ctx context.Context) (service.ClearInventoryResult, error)
	ClearAllOrders(ctx context.Context) (service.ClearOrdersResult, error)
}

type bulkHandler struct {
	*Service
	bulkSvc BulkService
}

func newBulkHandler(s *Service, bulkSvc BulkService) *bulkHandler {
	return &bulkHandler{Service: s, bulkSvc: bulkSvc}
}

func (h *bulkHandler) register(r chi.Router) {
	r.Post("/bulk/clear-inventory", h.handle(h.clearAllInventory))
	r.Post("/bulk/clear-orders", h.handle(h.clearAllOrders))
}

func (h *bulkHandler) clearAllInventory(w http.ResponseWriter, r *http.Request) error {
	result, err := h.bulkSvc.ClearAllInventory(r.Context())
	if err != nil {
		return fmt.Errorf("bulk service clear all inventory: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, result)
	return nil
}

func (h *bulkHandler) clearAllOrders(w http.ResponseWriter, r *http.Request) error {
	result, err := h.bulkSvc.ClearAllOrders(r.Context())
	if err != nil {
		return fmt.Errorf("bulk service clear all orders: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, result)
	return nil
}
