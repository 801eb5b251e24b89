package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/checkout"
	"github.com/vasiliy-maslov/nexoshop/internal/config"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
	"github.com/vasiliy-maslov/nexoshop/internal/events"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
	"github.com/vasiliy-maslov/nexoshop/internal/handler"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
	"github.com/vasiliy-maslov/nexoshop/internal/invoice"
	"github.com/vasiliy-maslov/nexoshop/internal/metrics"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
	"github.com/vasiliy-maslov/nexoshop/internal/pricing"
	"github.com/vasiliy-maslov/nexoshop/internal/refnum"
	"github.com/vasiliy-maslov/nexoshop/internal/reservation"
	"github.com/vasiliy-maslov/nexoshop/internal/transport"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "storefront").Logger()

	log.Info().Msg("Storefront starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.App.LogLevel)
	log.Debug().Interface("config_loaded", cfg).Msg("Configuration loaded")

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if cfg.Postgres.Migrate {
		if err := pg.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	redisClient, err := cart.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.OrderExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to rabbitmq")
		}
		defer func() {
			if err := rabbit.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close rabbitmq publisher")
			}
		}()
		publisher = rabbit
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, order events will not be published")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	catalogRepo := catalog.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool)
	fulfillmentRepo := fulfillment.NewRepository(pg.Pool)
	invoiceRepo := invoice.NewRepository(pg.Pool)
	accountRepo := identity.NewRepository(pg.Pool)

	catalogSvc := catalog.NewService(catalogRepo)
	cartSvc := cart.NewService(cart.NewRedisStore(redisClient, cfg.Redis.CartTTL), catalogSvc)
	orderSvc := order.NewService(orderRepo)
	fulfillmentSvc := fulfillment.NewService(fulfillmentRepo)
	tokens := identity.NewTokenProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accountSvc := identity.NewService(accountRepo, tokens)
	wallet := identity.NewWallet(identity.NewPaymentMethodRepository(pg.Pool))

	calculator := pricing.NewCalculator(pricing.PolicyFromConfig(cfg.Pricing))
	gate := reservation.NewGate(catalogRepo,
		reservation.WithConcurrency(cfg.Checkout.ConcurrentReservations, 0),
		reservation.WithCallTimeout(cfg.Checkout.StepTimeout),
	)

	orchestrator := checkout.NewOrchestrator(checkout.Deps{
		Cart:     cartSvc,
		Products: catalogSvc,
		Pricing:  calculator,
		Stock:    gate,
		Orders:   order.NewWriter(orderRepo, refnum.MustNew(refnum.PrefixOrder)),
		Statuses: orderRepo,
		Fulfillment: fulfillment.NewInitiator(fulfillmentRepo,
			fulfillment.WithStepTimeout(cfg.Checkout.StepTimeout)),
		Invoices: invoice.NewGenerator(invoiceRepo, refnum.MustNew(refnum.PrefixInvoice)),
		Events:   publisher,
		Metrics:  appMetrics,
	}, checkout.Options{
		StrictConfirmation: cfg.Checkout.StrictConfirmation,
		StepTimeout:        cfg.Checkout.StepTimeout,
	})

	router := transport.NewRouter(transport.RouterConfig{
		Tokens:         tokens,
		Metrics:        appMetrics,
		Gatherer:       registry,
		RequestTimeout: 30 * time.Second,
	}, transport.Handlers{
		Accounts:  handler.NewAccountHandler(accountSvc, wallet, orderSvc),
		Catalog:   handler.NewCatalogHandler(catalogSvc),
		Cart:      handler.NewCartHandler(cartSvc, calculator),
		Checkout:  handler.NewCheckoutHandler(orchestrator),
		Orders:    handler.NewOrderHandler(orderSvc, fulfillmentSvc, invoiceRepo),
		Shipments: handler.NewShipmentHandler(fulfillmentSvc),
		Dashboard: handler.NewDashboardHandler(catalogSvc, orderSvc),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}
