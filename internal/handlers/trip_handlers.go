package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/repository"
	"bikeshare-platform/internal/services"
	"bikeshare-platform/internal/stats"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

// TripHandler serves read-only trip statistics
type TripHandler struct {
	statsService *services.StatisticsService
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewTripHandler creates a new trip statistics handler
func NewTripHandler(
	statsService *services.StatisticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *TripHandler {
	return &TripHandler{
		statsService: statsService,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CitiesResponse lists the cities with a committed summary.
type CitiesResponse struct {
	Cities []*repository.SummaryInfo `json:"cities"`
	Total  int                       `json:"total"`
}

// ListCities handles GET /api/cities
func (h *TripHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summaries, err := h.statsService.ListCities(ctx)
	if err != nil {
		h.handleError(w, r, "/api/cities", err)
		return
	}

	h.sendJSON(w, CitiesResponse{Cities: summaries, Total: len(summaries)}, http.StatusOK)
}

// GetCityStatistics handles GET /api/cities/{city}/stats
func (h *TripHandler) GetCityStatistics(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/cities/{city}/stats"
	ctx := r.Context()

	city, err := models.ParseCity(mux.Vars(r)["city"])
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	threshold := h.statsService.DefaultThreshold()
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
			h.sendError(w, r, endpoint, "invalid threshold, expected a finite non-negative number of minutes", http.StatusBadRequest)
			return
		}
	}

	cityStats, err := h.statsService.GetCityStatistics(ctx, city, threshold)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendJSON(w, cityStats, http.StatusOK)
}

// GetHistogram handles GET /api/cities/{city}/histogram
func (h *TripHandler) GetHistogram(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/cities/{city}/histogram"
	ctx := r.Context()

	city, err := models.ParseCity(mux.Vars(r)["city"])
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	dim, err := stats.ParseDimension(r.URL.Query().Get("dimension"))
	if err != nil {
		h.sendError(w, r, endpoint, "invalid dimension, expected month, hour or weekday", http.StatusBadRequest)
		return
	}

	userType, ok := h.parseUserType(w, r, endpoint)
	if !ok {
		return
	}

	histogram, err := h.statsService.GetHistogram(ctx, city, dim, userType)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendJSON(w, histogram, http.StatusOK)
}

// GetDurationHistogram handles GET /api/cities/{city}/durations
func (h *TripHandler) GetDurationHistogram(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/cities/{city}/durations"
	ctx := r.Context()

	city, err := models.ParseCity(mux.Vars(r)["city"])
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	userType, ok := h.parseUserType(w, r, endpoint)
	if !ok {
		return
	}

	histogram, err := h.statsService.GetDurationHistogram(ctx, city, userType)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendJSON(w, histogram, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *TripHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if err := h.statsService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Summary store unavailable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, statusCode)
}

// parseUserType reads user_type, defaulting to Subscriber.
func (h *TripHandler) parseUserType(w http.ResponseWriter, r *http.Request, endpoint string) (models.UserType, bool) {
	raw := r.URL.Query().Get("user_type")
	if raw == "" {
		return models.UserTypeSubscriber, true
	}
	userType, err := models.ParseUserType(raw)
	if err != nil {
		h.sendError(w, r, endpoint, "invalid user_type, expected Subscriber or Customer", http.StatusBadRequest)
		return "", false
	}
	return userType, true
}

// handleError maps service errors onto HTTP status codes
func (h *TripHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var (
		notFound   *repository.NotFoundError
		schemaErr  *models.SchemaError
		validation *models.ValidationError
	)

	switch {
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusNotFound)
	case errors.As(err, &schemaErr):
		h.metrics.RecordAPIError("unknown_city", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusNotFound)
	case errors.As(err, &validation):
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"path":     r.URL.Path,
		}, err)
		h.metrics.RecordAPIError(models.ErrorKind(err), endpoint)
		h.sendError(w, r, endpoint, "failed to compute statistics", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *TripHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *TripHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.logger.Debug(r.Context(), "[API_REQUEST_REJECTED] Request rejected", logging.Fields{
		"endpoint": endpoint,
		"status":   statusCode,
		"message":  message,
	})

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request count, duration and in-flight requests under
// the route template rather than the raw path.
func (h *TripHandler) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.metrics.InFlightRequests.Inc()
		defer h.metrics.InFlightRequests.Dec()

		timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		timer.ObserveDuration()

		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
	}
}

// RegisterRoutes registers all trip API routes
func (h *TripHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/cities", h.instrument("/api/cities", h.ListCities)).Methods("GET")
	router.HandleFunc("/api/cities/{city}/stats", h.instrument("/api/cities/{city}/stats", h.GetCityStatistics)).Methods("GET")
	router.HandleFunc("/api/cities/{city}/histogram", h.instrument("/api/cities/{city}/histogram", h.GetHistogram)).Methods("GET")
	router.HandleFunc("/api/cities/{city}/durations", h.instrument("/api/cities/{city}/durations", h.GetDurationHistogram)).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc(openAPIPath, OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}
