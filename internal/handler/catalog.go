package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
)

type ProductRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url" validate:"omitempty,url"`
	Price       string     `json:"price" validate:"required"`
	Stock       int        `json:"stock" validate:"gte=0"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type SetStockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

func (c CategoryRequest) toCategory() *catalog.Category {
	return &catalog.Category{Name: c.Name, Description: c.Description, ImageURL: c.ImageURL}
}

type CatalogHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service, validate: validator.New()}
}

// RegisterRoutes mounts the public storefront catalog.
func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListActiveProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/categories", h.handleListCategories)
}

func (h *CatalogHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/products", h.handleListAllProducts)
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
	router.Post("/categories", h.handleCreateCategory)
	router.Put("/categories/{id}", h.handleUpdateCategory)
	router.Delete("/categories/{id}", h.handleDeleteCategory)
	router.Get("/inventory", h.handleInventory)
	router.Get("/inventory/low-stock", h.handleLowStock)
	router.Put("/inventory/{id}/stock", h.handleSetStock)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	filter := catalog.ProductFilter{ActiveOnly: activeOnly}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid category_id parameter")
			return
		}
		filter.CategoryID = uuid.NullUUID{UUID: id, Valid: true}
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleListActiveProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, true)
}

func (h *CatalogHandler) handleListAllProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, false)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}
	if !p.IsActive {
		respondWithError(w, http.StatusNotFound, catalog.ErrProductNotFound.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) productFromRequest(w http.ResponseWriter, r *http.Request) (*catalog.Product, bool) {
	var payload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return nil, false
	}

	price, ok := parseMoney(w, "price", payload.Price)
	if !ok {
		return nil, false
	}

	p := &catalog.Product{
		Name:        payload.Name,
		Description: payload.Description,
		ImageURL:    payload.ImageURL,
		Price:       price,
		Stock:       payload.Stock,
		IsActive:    true,
	}
	if payload.CategoryID != nil {
		p.CategoryID = uuid.NullUUID{UUID: *payload.CategoryID, Valid: true}
	}
	if payload.IsActive != nil {
		p.IsActive = *payload.IsActive
	}
	return p, true
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.productFromRequest(w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), p)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}
	log.Info().Stringer("product_id", created.ID).Msg("Product created")
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	p, ok := h.productFromRequest(w, r)
	if !ok {
		return
	}
	p.ID = id

	updated, err := h.service.UpdateProduct(r.Context(), p)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) handleInventory(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Inventory(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list inventory")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list low stock products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload SetStockRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	if err := h.service.SetStock(r.Context(), id, *payload.Stock); err != nil {
		respondWithServiceError(w, err, "Failed to set stock")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	created, err := h.service.CreateCategory(r.Context(), payload.toCategory())
	if err != nil {
		respondWithServiceError(w, err, "Failed to create category")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload CategoryRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	c := payload.toCategory()
	c.ID = id
	updated, err := h.service.UpdateCategory(r.Context(), c)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update category")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
