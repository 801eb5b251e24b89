package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
	"github.com/vasiliy-maslov/nexoshop/internal/invoice"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
)

type InvoiceLookup interface {
	GetInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*invoice.Invoice, error)
}

type FulfillmentLookup interface {
	GetShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*fulfillment.Shipment, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*fulfillment.Payment, error)
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
}

// OrderDetailResponse is an order with whatever fulfillment records exist for it.
type OrderDetailResponse struct {
	*order.Order
	Payment  *fulfillment.Payment  `json:"payment,omitempty"`
	Shipment *fulfillment.Shipment `json:"shipment,omitempty"`
	Invoice  *invoice.Invoice      `json:"invoice,omitempty"`
}

type OrderHandler struct {
	orders      order.Service
	fulfillment FulfillmentLookup
	invoices    InvoiceLookup
	validate    *validator.Validate
}

func NewOrderHandler(orders order.Service, fulfillment FulfillmentLookup, invoices InvoiceLookup) *OrderHandler {
	return &OrderHandler{
		orders:      orders,
		fulfillment: fulfillment,
		invoices:    invoices,
		validate:    validator.New(),
	}
}

// RegisterRoutes mounts the customer's own order history.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders", h.handleListMyOrders)
	router.Get("/orders/{id}", h.handleGetMyOrder)
}

func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/recent", h.handleRecentOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
}

func (h *OrderHandler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.GetOrdersByUserID(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetMyOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetUserOrder(r.Context(), user.ID, orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, h.detail(r.Context(), o))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{Status: order.OrderStatus(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleRecentOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.RecentOrders(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list recent orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, h.detail(r.Context(), o))
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	updated, err := h.orders.UpdateOrderStatus(r.Context(), orderID, order.OrderStatus(payload.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// detail attaches fulfillment records. Missing records are omitted; lookup failures are
// logged and omitted too, since the order itself is the source of truth.
func (h *OrderHandler) detail(ctx context.Context, o *order.Order) OrderDetailResponse {
	resp := OrderDetailResponse{Order: o}

	payment, err := h.fulfillment.GetPaymentByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		resp.Payment = payment
	case !errors.Is(err, fulfillment.ErrPaymentNotFound):
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("Failed to load payment for order detail")
	}

	shipment, err := h.fulfillment.GetShipmentByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		resp.Shipment = shipment
	case !errors.Is(err, fulfillment.ErrShipmentNotFound):
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("Failed to load shipment for order detail")
	}

	inv, err := h.invoices.GetInvoiceByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		resp.Invoice = inv
	case !errors.Is(err, invoice.ErrInvoiceNotFound):
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("Failed to load invoice for order detail")
	}

	return resp
}
