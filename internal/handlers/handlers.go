package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"crop-estimator/internal/models"
	"crop-estimator/internal/services"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

const maxRequestBytes = 1 << 20

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ListResponse wraps an unpaginated collection
type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

// HealthChecker is implemented by the repository when a database is configured
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CropHandler serves the crop, estimate and climate endpoints
type CropHandler struct {
	catalogs    *services.CatalogService
	estimations *services.EstimationService
	climate     *services.ClimateService
	health      HealthChecker
	validate    *validator.Validate
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
	recommendN  int
}

// NewCropHandler creates the API handler. climate and health may be nil when
// the database is disabled.
func NewCropHandler(
	catalogs *services.CatalogService,
	estimations *services.EstimationService,
	climate *services.ClimateService,
	health HealthChecker,
	recommendLimit int,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *CropHandler {
	return &CropHandler{
		catalogs:    catalogs,
		estimations: estimations,
		climate:     climate,
		health:      health,
		validate:    newValidator(),
		logger:      logger,
		metrics:     metricsCollector,
		recommendN:  recommendLimit,
	}
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// HealthCheck handles GET /health
func (h *CropHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":        "healthy",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"catalog_crops": h.catalogs.Catalog().Len(),
		"database":      "disabled",
	}
	code := http.StatusOK

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Database health check failed", logging.Fields{}, err)
			status["status"] = "degraded"
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status["status"]})
	h.sendJSON(w, status, code)
}

// decode reads a JSON body into dst and runs struct validation
func (h *CropHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &models.InvalidInputError{Message: fmt.Sprintf("malformed JSON body: %v", err)}
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.InvalidInputError{
				Field:   fe.Field(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: validationMessage(fe),
			}
		}
		return err
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// writeError maps service errors onto HTTP status codes
func (h *CropHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid  *models.InvalidInputError
		notFound *models.NotFoundError
	)

	switch {
	case errors.As(err, &invalid):
		h.sendError(w, r, "invalid_input", invalid.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		h.sendError(w, r, "not_found", notFound.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrPersistenceDisabled):
		h.sendError(w, r, "persistence_disabled", err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
		}, err)
		h.sendError(w, r, "internal_error", "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *CropHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	writeJSON(w, data, statusCode)
}

// sendError sends an error response
func (h *CropHandler) sendError(w http.ResponseWriter, r *http.Request, errorType, message string, statusCode int) {
	h.metrics.RecordAPIError(errorType, routeTemplate(r))
	writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// routeTemplate returns the matched mux route, falling back to the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// pagination parses page and limit the same way for every list endpoint
func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}

// optionalFloat parses a query parameter that may be absent
func optionalFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &models.InvalidInputError{Field: name, Value: raw, Message: "must be a number"}
	}
	return &v, nil
}

// RegisterRoutes registers all API routes
func (h *CropHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/crops", h.ListCrops).Methods("GET")
	router.HandleFunc("/api/crops/{id}", h.GetCrop).Methods("GET")
	router.HandleFunc("/api/crops/{id}/compatibility", h.GetCompatibility).Methods("GET")
	router.HandleFunc("/api/estimate", h.Estimate).Methods("POST")
	router.HandleFunc("/api/recommend", h.Recommend).Methods("POST")
	router.HandleFunc("/api/estimates", h.ListEstimates).Methods("GET")
	router.HandleFunc("/api/estimates/{id}", h.GetEstimate).Methods("GET")
	router.HandleFunc("/api/climate/normals/{region}/{season}", h.GetClimateNormal).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
