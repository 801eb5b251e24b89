// Package transport assembles the HTTP router.
package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vasiliy-maslov/nexoshop/internal/handler"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
	"github.com/vasiliy-maslov/nexoshop/internal/metrics"
)

type Handlers struct {
	Accounts  *handler.AccountHandler
	Catalog   *handler.CatalogHandler
	Cart      *handler.CartHandler
	Checkout  *handler.CheckoutHandler
	Orders    *handler.OrderHandler
	Shipments *handler.ShipmentHandler
	Dashboard *handler.DashboardHandler
}

type RouterConfig struct {
	Tokens  *identity.TokenProvider
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// RequestTimeout bounds every request. Zero disables it.
	RequestTimeout time.Duration
}

// NewRouter mounts public routes at the root, customer routes behind bearer
// authentication and back-office routes under /admin for the admin role.
func NewRouter(cfg RouterConfig, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	h.Accounts.RegisterPublicRoutes(r)
	h.Catalog.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Authenticate(cfg.Tokens))

		h.Accounts.RegisterRoutes(r)
		h.Cart.RegisterRoutes(r)
		h.Checkout.RegisterRoutes(r)
		h.Orders.RegisterRoutes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(identity.RequireRole(identity.RoleAdmin))

			h.Accounts.RegisterAdminRoutes(r)
			h.Catalog.RegisterAdminRoutes(r)
			h.Orders.RegisterAdminRoutes(r)
			h.Shipments.RegisterAdminRoutes(r)
			h.Dashboard.RegisterAdminRoutes(r)
		})
	})

	return r
}
