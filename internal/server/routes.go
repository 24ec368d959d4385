package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/observability"
	"github.com/routelens/routelens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Proxies the Prometheus exporter
	s.router.Get("/metrics", MetricsHandler)

	if lookup := s.opts.Lookup; lookup != nil {
		s.router.Route("/api/bgp", func(r chi.Router) {
			r.Get("/lookup", lookup.Lookup)
			r.Get("/classify", lookup.Classify)
		})
	}

	if s.opts.Pprof {
		s.router.Mount("/debug", middleware.Profiler())
		if logger := observability.ServerLogger; logger != nil {
			logger.Warn("pprof endpoints enabled", zap.String("path", "/debug/pprof"))
		}
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token configured)")
		}
		return
	}

	// Bearer token auth with its own rate limit, separate from lookup budgets
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10, // requests per minute
		RateBurst: 5,
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
