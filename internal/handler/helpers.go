// Package handler exposes the storefront and back-office over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/checkout"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
	"github.com/vasiliy-maslov/nexoshop/internal/invoice"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
	"github.com/vasiliy-maslov/nexoshop/internal/pricing"
	"github.com/vasiliy-maslov/nexoshop/internal/reservation"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "min", "gte":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max", "lte":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "email":
			details[field] = "must be a valid email"
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		case "uuid4", "uuid":
			details[field] = "must be a valid UUID"
		default:
			details[field] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and runs struct validation. It writes the
// error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse UUID parameter from URL")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameter", name))
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authenticated user. Routes using it are mounted behind
// identity.Authenticate, so a missing user is a wiring bug reported as 401.
func currentUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	u, ok := identity.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
	}
	return u, ok
}

func parseMoney(w http.ResponseWriter, field, raw string) (money.Money, bool) {
	m, err := money.Parse(raw)
	if err != nil || m.IsNegative() {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{field: "must be a non-negative decimal amount"},
		})
		return 0, false
	}
	return m, true
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, fulfillment.ErrShipmentNotFound),
		errors.Is(err, fulfillment.ErrPaymentNotFound),
		errors.Is(err, invoice.ErrInvoiceNotFound),
		errors.Is(err, identity.ErrAccountNotFound),
		errors.Is(err, identity.ErrPaymentMethodNotFound):
		return http.StatusNotFound

	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, catalog.ErrStockContended),
		errors.Is(err, catalog.ErrCategoryExists),
		errors.Is(err, order.ErrStatusConflict),
		errors.Is(err, order.ErrStatusAlreadySet),
		errors.Is(err, fulfillment.ErrShipmentStatusConflict),
		errors.Is(err, identity.ErrEmailExists):
		return http.StatusConflict

	case errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, fulfillment.ErrInvalidShipmentTransition),
		errors.Is(err, catalog.ErrProductInactive),
		errors.Is(err, cart.ErrProductUnavailable):
		return http.StatusUnprocessableEntity

	case errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrNegativePrice),
		errors.Is(err, reservation.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrMissingShippingAddress),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidProductData),
		errors.Is(err, catalog.ErrNegativeStock),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, fulfillment.ErrInvalidShipmentStatus),
		errors.Is(err, fulfillment.ErrInvalidPaymentMethod),
		errors.Is(err, fulfillment.ErrInvalidTracking),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, identity.ErrInvalidProfile),
		errors.Is(err, identity.ErrInvalidPaymentMethod):
		return http.StatusBadRequest

	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError maps err to a status code. Client errors expose the domain
// message; everything else gets fallback.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
		respondWithError(w, code, fallback)
		return
	}
	log.Warn().Err(err).Int("status", code).Msg(fallback)
	respondWithError(w, code, err.Error())
}
