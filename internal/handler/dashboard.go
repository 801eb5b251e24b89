package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
)

type InventoryStatsSource interface {
	Stats(ctx context.Context) (catalog.InventoryStats, error)
}

type SalesStatsSource interface {
	SalesStats(ctx context.Context) (order.SalesStats, error)
	RecentOrders(ctx context.Context) ([]order.Order, error)
}

type DashboardResponse struct {
	catalog.InventoryStats
	order.SalesStats
	RecentOrders []order.Order `json:"recent_orders"`
}

// DashboardHandler serves the back-office overview.
type DashboardHandler struct {
	inventory InventoryStatsSource
	sales     SalesStatsSource
}

func NewDashboardHandler(inventory InventoryStatsSource, sales SalesStatsSource) *DashboardHandler {
	return &DashboardHandler{inventory: inventory, sales: sales}
}

func (h *DashboardHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/dashboard", h.handleDashboard)
}

func (h *DashboardHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inventory, err := h.inventory.Stats(ctx)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load inventory stats")
		return
	}
	sales, err := h.sales.SalesStats(ctx)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load sales stats")
		return
	}
	recent, err := h.sales.RecentOrders(ctx)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load recent orders")
		return
	}

	respondWithJSON(w, http.StatusOK, DashboardResponse{
		InventoryStats: inventory,
		SalesStats:     sales,
		RecentOrders:   recent,
	})
}
