package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

// RouterOptions configures the HTTP router
type RouterOptions struct {
	// AllowedOrigins for CORS; empty disables the CORS wrapper
	AllowedOrigins []string
	// Limiter throttles POST endpoints; nil disables rate limiting
	Limiter *rate.Limiter
	// MetricsHandler is mounted at /metrics when non-nil
	MetricsHandler http.Handler
}

// NewRouter wires the API routes, docs and middleware into one handler
func NewRouter(h *CropHandler, opts RouterOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) http.Handler {
	router := mux.NewRouter()

	router.Use(RequestID())
	router.Use(AccessLog(logger, metricsCollector))
	router.Use(Recover(logger, metricsCollector))
	if opts.Limiter != nil {
		router.Use(RateLimit(opts.Limiter, metricsCollector))
	}

	h.RegisterRoutes(router)

	router.HandleFunc("/api/docs", SwaggerUI(logger)).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler).Methods("GET")
	}

	if len(opts.AllowedOrigins) == 0 {
		return router
	}

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(router)
}
