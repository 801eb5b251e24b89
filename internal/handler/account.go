package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
)

type AccountService interface {
	Register(ctx context.Context, reg identity.Registration) (*identity.Account, error)
	Login(ctx context.Context, email, password string) (string, *identity.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*identity.Account, error)
	List(ctx context.Context) ([]identity.Account, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) (*identity.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p identity.Profile) (*identity.Account, error)
}

type WalletService interface {
	List(ctx context.Context, userID uuid.UUID) ([]identity.SavedPaymentMethod, error)
	Add(ctx context.Context, userID uuid.UUID, n identity.NewPaymentMethod) (*identity.SavedPaymentMethod, error)
	Remove(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
}

type CustomerStatsLookup interface {
	CustomerStats(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]order.CustomerStats, error)
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,min=2"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

type UpdateProfileRequest struct {
	FullName   string `json:"full_name" validate:"required,min=2"`
	Phone      string `json:"phone" validate:"max=20"`
	Address    string `json:"address"`
	City       string `json:"city" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"max=100"`
}

type AddPaymentMethodRequest struct {
	Type           string `json:"type" validate:"required,oneof=card paypal"`
	CardHolderName string `json:"card_holder_name" validate:"required_if=Type card"`
	CardNumber     string `json:"card_number" validate:"required_if=Type card"`
	CardBrand      string `json:"card_brand" validate:"required_if=Type card"`
}

type AccountResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Country    string    `json:"country,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserSummaryResponse is an account in the admin user list with its order history totals.
type UserSummaryResponse struct {
	AccountResponse
	order.CustomerStats
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

func toAccountResponse(a *identity.Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Email:      a.Email,
		FullName:   a.FullName,
		Role:       a.Role,
		Phone:      a.Phone,
		Address:    a.Address,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		CreatedAt:  a.CreatedAt,
	}
}

type AccountHandler struct {
	service  AccountService
	wallet   WalletService
	stats    CustomerStatsLookup
	validate *validator.Validate
}

func NewAccountHandler(service AccountService, wallet WalletService, stats CustomerStatsLookup) *AccountHandler {
	return &AccountHandler{service: service, wallet: wallet, stats: stats, validate: validator.New()}
}

// RegisterPublicRoutes mounts the unauthenticated sign-up and sign-in endpoints.
func (h *AccountHandler) RegisterPublicRoutes(router chi.Router) {
	router.Post("/auth/register", h.handleRegister)
	router.Post("/auth/login", h.handleLogin)
}

func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Get("/me", h.handleMe)
	router.Put("/me", h.handleUpdateProfile)
	router.Get("/me/payment-methods", h.handleListPaymentMethods)
	router.Post("/me/payment-methods", h.handleAddPaymentMethod)
	router.Delete("/me/payment-methods/{id}", h.handleRemovePaymentMethod)
	router.Put("/me/payment-methods/{id}/default", h.handleSetDefaultPaymentMethod)
}

func (h *AccountHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/users", h.handleListUsers)
	router.Patch("/users/{id}/role", h.handleSetRole)
}

func (h *AccountHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	account, err := h.service.Register(r.Context(), identity.Registration{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to register account")
		return
	}
	respondWithJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload LoginRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	token, account, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to log in")
		return
	}
	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, Account: toAccountResponse(account)})
}

func (h *AccountHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	account, err := h.service.Get(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load account")
		return
	}
	respondWithJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list users")
		return
	}

	ids := make([]uuid.UUID, len(accounts))
	for i := range accounts {
		ids[i] = accounts[i].ID
	}
	stats, err := h.stats.CustomerStats(r.Context(), ids)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load user order stats")
		return
	}

	resp := make([]UserSummaryResponse, len(accounts))
	for i := range accounts {
		resp[i] = UserSummaryResponse{
			AccountResponse: toAccountResponse(&accounts[i]),
			CustomerStats:   stats[accounts[i].ID],
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *AccountHandler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload SetRoleRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	account, err := h.service.SetRole(r.Context(), id, payload.Role)
	if err != nil {
		respondWithServiceError(w, err, "Failed to change role")
		return
	}
	respondWithJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload UpdateProfileRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	account, err := h.service.UpdateProfile(r.Context(), user.ID, identity.Profile{
		FullName:   payload.FullName,
		Phone:      payload.Phone,
		Address:    payload.Address,
		City:       payload.City,
		PostalCode: payload.PostalCode,
		Country:    payload.Country,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update profile")
		return
	}
	respondWithJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	methods, err := h.wallet.List(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list payment methods")
		return
	}
	respondWithJSON(w, http.StatusOK, methods)
}

func (h *AccountHandler) handleAddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload AddPaymentMethodRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	method, err := h.wallet.Add(r.Context(), user.ID, identity.NewPaymentMethod{
		Type:           identity.PaymentMethodType(payload.Type),
		CardHolderName: payload.CardHolderName,
		CardNumber:     payload.CardNumber,
		CardBrand:      payload.CardBrand,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to add payment method")
		return
	}
	respondWithJSON(w, http.StatusCreated, method)
}

func (h *AccountHandler) handleRemovePaymentMethod(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.wallet.Remove(r.Context(), user.ID, id); err != nil {
		respondWithServiceError(w, err, "Failed to remove payment method")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) handleSetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.wallet.SetDefault(r.Context(), user.ID, id); err != nil {
		respondWithServiceError(w, err, "Failed to set default payment method")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
