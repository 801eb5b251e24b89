package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
	"github.com/vasiliy-maslov/nexoshop/internal/pricing"
)

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type CartResponse struct {
	Lines    []cart.Line        `json:"lines"`
	Subtotal money.Money        `json:"subtotal"`
	Preview  *pricing.Breakdown `json:"preview,omitempty"`
}

// CartPreviewer prices the cart as it would be charged at checkout.
type CartPreviewer interface {
	Calculate(lines []cart.Line) (pricing.Breakdown, error)
}

type CartHandler struct {
	service  cart.Service
	pricer   CartPreviewer
	validate *validator.Validate
}

func NewCartHandler(service cart.Service, pricer CartPreviewer) *CartHandler {
	return &CartHandler{service: service, pricer: pricer, validate: validator.New()}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Delete("/cart", h.handleClearCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{productID}", h.handleUpdateItem)
	router.Delete("/cart/items/{productID}", h.handleRemoveItem)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	lines, err := h.service.Lines(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load cart")
		return
	}

	resp := CartResponse{Lines: lines}
	for _, l := range lines {
		resp.Subtotal = resp.Subtotal.Add(l.UnitPrice.Mul(l.Quantity))
	}
	if len(lines) > 0 {
		if preview, err := h.pricer.Calculate(lines); err == nil {
			resp.Preview = &preview
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload AddCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	line, err := h.service.Add(r.Context(), user.ID, payload.ProductID, payload.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add item to cart")
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(w, r, "productID")
	if !ok {
		return
	}

	var payload UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), user.ID, productID, payload.Quantity); err != nil {
		respondWithServiceError(w, err, "Failed to update cart item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(w, r, "productID")
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), user.ID, productID); err != nil {
		respondWithServiceError(w, err, "Failed to remove cart item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), user.ID); err != nil {
		respondWithServiceError(w, err, "Failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
