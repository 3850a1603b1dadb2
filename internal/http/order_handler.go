package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

type OrderService interface {
	CreateOrder(ctx context.Context, params service.CreateOrderParams) (model.OrderWithItems, error)
	GetOrder(ctx context.Context, id string) (model.OrderWithItems, error)
	ListOrders(ctx context.Context, params service.ListOrdersParams) ([]model.Order, error)
	UpdateStatus(ctx context.Context, params service.UpdateOrderStatusParams) (model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

type createOrderItemRequest struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     *float64    `json:"price"`
	SerialIDs []uuid.UUID `json:"serial_ids"`
}

type createOrderRequest struct {
	Customer string                   `json:"customer"`
	Items    []createOrderItemRequest `json:"items"`
}

type updateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type orderHandler struct {
	*Service
	orderSvc OrderService
}

func newOrderHandler(s *Service, orderSvc OrderService) *orderHandler {
	return &orderHandler{Service: s, orderSvc: orderSvc}
}

func (h *orderHandler) register(r chi.Router) {
	r.Get("/orders", h.handle(h.listOrders))
	r.Post("/orders", h.handle(h.createOrder))
	r.Get("/orders/{orderId}", h.handle(h.getOrder))
	r.Delete("/orders/{orderId}", h.handle(h.deleteOrder))
	r.Patch("/orders/{orderId}/status", h.handle(h.updateOrderStatus))
}

func (h *orderHandler) listOrders(w http.ResponseWriter, r *http.Request) error {
	desc, err := queryBool(r, "desc")
	if err != nil {
		return err
	}
	limit, err := queryInt32(r, "limit")
	if err != nil {
		return err
	}

	params := service.ListOrdersParams{
		Customer: queryString(r, "customer"),
		Desc:     desc,
		Limit:    limit,
	}
	if status := queryString(r, "status"); status != nil {
		s := model.OrderStatus(*status)
		params.Status = &s
	}

	orders, err := h.orderSvc.ListOrders(r.Context(), params)
	if err != nil {
		return fmt.Errorf("order service list orders: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, orders)
	return nil
}

func (h *orderHandler) createOrder(w http.ResponseWriter, r *http.Request) error {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	params := service.CreateOrderParams{
		Customer: req.Customer,
		Items:    make([]service.CreateOrderItemParams, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		params.Items = append(params.Items, service.CreateOrderItemParams{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			SerialIDs: item.SerialIDs,
		})
	}

	order, err := h.orderSvc.CreateOrder(r.Context(), params)
	if err != nil {
		return fmt.Errorf("order service create order: %w", err)
	}

	h.writeJSON(w, r, http.StatusCreated, order)
	return nil
}

func (h *orderHandler) getOrder(w http.ResponseWriter, r *http.Request) error {
	order, err := h.orderSvc.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		return fmt.Errorf("order service get order: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, order)
	return nil
}

func (h *orderHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) error {
	var req updateOrderStatusRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	order, err := h.orderSvc.UpdateStatus(r.Context(), service.UpdateOrderStatusParams{
		OrderID: chi.URLParam(r, "orderId"),
		Status:  req.Status,
	})
	if err != nil {
		return fmt.Errorf("order service update status: %w", err)
	}

	h.writeJSON(w, r, http.StatusOK, order)
	return nil
}

func (h *orderHandler) deleteOrder(w http.ResponseWriter, r *http.Request) error {
	if err := h.orderSvc.DeleteOrder(r.Context(), chi.URLParam(r, "orderId")); err != nil {
		return fmt.Errorf("order service delete order: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
