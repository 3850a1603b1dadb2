package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

type SerialService interface {
	AddSerials(ctx context.Context, params service.AddSerialsParams) ([]model.SerialNumber, error)
	ListSerials(ctx context.Context, params service.ListSerialsParams) ([]model.SerialNumber, error)
	DeleteSerial(ctx context.Context, id uuid.UUID) error
	SyncStockToSerials(ctx context.Context, productID string) (model.Product, error)
}

type addSerialsRequest struct {
	Serials []string `json:"serials"`
}

type serialHandler struct {
	*Service
	serialSvc SerialService
}

func newSerialHandler(s *Service, serialSvc SerialService) *serialHandler {
	return &serialHandler{Service: s, serialSvc: serialSvc}
}

func (h *serialHandler) register(r chi.Router) {
	r.Get("/products/{productId}/serials", h.handle(h.listSerials))
	r.Post("/products/{productId}/serials", h.handle(h.addSerials))
	r.Post("/products/{productId}/serials/sync", h.handle(h.syncStockToSerials))
	r.Delete("/serials/{serialId}", h.handle(h.deleteSerial))
}

func (h *serialHandler) listSerials(w http.ResponseWriter, r *http.Request) error {
	params := service.ListSerialsParams{ProductID: chi.URLParam(r, "productId")}
	if status := queryString(r, "status"); status != nil {
		s := model.SerialStatus(*status)
		params.Status = &s
	}

	serials, err := h.serialSvc.ListSerials(r.Context(), params)
	if err != nil {
		return fmt.Errorf("serial tracker list serials: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, serials)
	return nil
}

func (h *serialHandler) addSerials(w http.ResponseWriter, r *http.Request) error {
	var req addSerialsRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	serials, err := h.serialSvc.AddSerials(r.Context(), service.AddSerialsParams{
		ProductID: chi.URLParam(r, "productId"),
		Serials:   req.Serials,
	})
	if err != nil {
		return fmt.Errorf("serial tracker add serials: %w", err)
	}

	h.writeJSON(w, r, http.StatusCreated, serials)
	return nil
}

func (h *serialHandler) syncStockToSerials(w http.ResponseWriter, r *http.Request) error {
	product, err := h.serialSvc.SyncStockToSerials(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		return fmt.Errorf("serial tracker sync stock: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, product)
	return nil
}

func (h *serialHandler) deleteSerial(w http.ResponseWriter, r *http.Request) error {
	id, err := uuid.Parse(chi.URLParam(r, "serialId"))
	if err != nil {
		return apperr.NewValidation("serial id must be a UUID").WrapParent(err)
	}

	if err := h.serialSvc.DeleteSerial(r.Context(), id); err != nil {
		return fmt.Errorf("serial tracker delete serial: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
