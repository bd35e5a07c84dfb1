package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/surgecart/server/internal/config"
	"github.com/surgecart/server/internal/inventory"
	"github.com/surgecart/server/internal/logger"
	"github.com/surgecart/server/internal/metrics"
	"github.com/surgecart/server/internal/orders"
	"github.com/surgecart/server/internal/payments"
)

var serverStartTime = time.Now()

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg       *config.Config
	inventory *inventory.Service
	orders    *orders.Service
	payments  *payments.Processor
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    zerolog.Logger
}

// New builds the HTTP server with the configured router.
func New(cfg *config.Config, inventorySvc *inventory.Service, ordersSvc *orders.Service, paymentsSvc *payments.Processor, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:       cfg,
			inventory: inventorySvc,
			orders:    ordersSvc,
			payments:  paymentsSvc,
			metrics:   metricsCollector,
			validate:  newValidator(),
			logger:    appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	s.configureRouter(router)
	return s
}

func (s *Server) configureRouter(router chi.Router) {
	cfg := s.cfg

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)

	// Logging middleware sits before RequestID so the request-scoped logger
	// propagates through the context.
	router.Use(logger.Middleware(s.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Lightweight endpoints kept outside the request timeout and rate limit.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", s.health)
		r.Handle("/metrics", promhttp.Handler())
	})

	router.Group(func(r chi.Router) {
		if cfg.Server.RequestTimeout.Duration > 0 {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))
		}
		if cfg.RateLimit.Enabled && cfg.RateLimit.Limit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit.Limit, cfg.RateLimit.Window.Duration))
		}

		r.Get("/api/products/{id}", s.getProduct)
		r.Post("/api/holds", s.createHold)
		r.Post("/api/orders", s.createOrder)
		r.Post("/api/payments/webhook", s.paymentWebhook)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
