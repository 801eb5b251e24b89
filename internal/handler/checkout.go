package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/checkout"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
	"github.com/vasiliy-maslov/nexoshop/internal/pricing"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

type ShippingAddressPayload struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type CheckoutLinePayload struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CheckoutRequest struct {
	ShippingAddress ShippingAddressPayload `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" validate:"omitempty,oneof=card paypal cash"`
	// Lines overrides the stored cart when present.
	Lines []CheckoutLinePayload `json:"lines,omitempty" validate:"omitempty,dive"`
}

type WarningResponse struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type CheckoutResponse struct {
	OrderID             uuid.UUID         `json:"order_id"`
	OrderNumber         string            `json:"order_number"`
	Status              order.OrderStatus `json:"status"`
	Pricing             pricing.Breakdown `json:"pricing"`
	TrackingNumber      string            `json:"tracking_number,omitempty"`
	InvoiceNumber       string            `json:"invoice_number,omitempty"`
	Warnings            []WarningResponse `json:"warnings"`
	NeedsReconciliation bool              `json:"needs_reconciliation"`
}

type InsufficientStockResponse struct {
	Error     string    `json:"error"`
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type CheckoutHandler struct {
	placer   OrderPlacer
	validate *validator.Validate
}

func NewCheckoutHandler(placer OrderPlacer) *CheckoutHandler {
	return &CheckoutHandler{placer: placer, validate: validator.New()}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout", h.handlePlaceOrder)
}

func (h *CheckoutHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload CheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	req := checkout.Request{
		UserID: user.ID,
		ShippingAddress: order.ShippingAddress{
			Address:    payload.ShippingAddress.Address,
			City:       payload.ShippingAddress.City,
			PostalCode: payload.ShippingAddress.PostalCode,
			Country:    payload.ShippingAddress.Country,
		},
		PaymentMethod: fulfillment.PaymentMethod(payload.PaymentMethod),
	}
	if len(payload.Lines) > 0 {
		req.Lines = make([]cart.Line, len(payload.Lines))
		for i, l := range payload.Lines {
			req.Lines[i] = cart.Line{ProductID: l.ProductID, Quantity: l.Quantity}
		}
	}

	result, err := h.placer.PlaceOrder(r.Context(), req)
	if err != nil {
		h.respondWithCheckoutError(w, err)
		return
	}

	resp := CheckoutResponse{
		OrderID:             result.OrderID,
		OrderNumber:         result.OrderNumber,
		Status:              result.Status,
		Pricing:             result.Pricing,
		Warnings:            make([]WarningResponse, 0, len(result.Warnings)),
		NeedsReconciliation: result.NeedsReconciliation(),
	}
	if result.Shipment != nil {
		resp.TrackingNumber = result.Shipment.TrackingNumber
	}
	if result.Invoice != nil {
		resp.InvoiceNumber = result.Invoice.InvoiceNumber
	}
	for _, warning := range result.Warnings {
		resp.Warnings = append(resp.Warnings, WarningResponse{Stage: warning.Stage, Message: warning.Err.Error()})
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *CheckoutHandler) respondWithCheckoutError(w http.ResponseWriter, err error) {
	var stockErr *catalog.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondWithJSON(w, http.StatusConflict, InsufficientStockResponse{
			Error:     "Insufficient stock",
			ProductID: stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		})
		return
	}

	if errors.Is(err, checkout.ErrOrderCreationFailed) {
		log.Error().Err(err).Msg("Checkout failed on the critical path")
		respondWithError(w, http.StatusInternalServerError, checkout.ErrOrderCreationFailed.Error())
		return
	}

	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Checkout failed")
		respondWithError(w, code, checkout.ErrOrderCreationFailed.Error())
		return
	}
	respondWithError(w, code, err.Error())
}
