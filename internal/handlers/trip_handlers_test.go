package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/repository"
	"bikeshare-platform/internal/services"
	"bikeshare-platform/internal/stats"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

type testServer struct {
	router  *mux.Router
	repo    repository.TripRepository
	metrics *metrics.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("test", prometheus.NewRegistry())

	repo := repository.NewTripRepository(map[models.City]string{
		models.CityNYC:        filepath.Join(dir, "NYC-2016-Summary.csv"),
		models.CityChicago:    filepath.Join(dir, "Chicago-2016-Summary.csv"),
		models.CityWashington: filepath.Join(dir, "summaries", "Washington-2016-Summary.csv"),
	}, logger, collector)

	statsService, err := services.NewStatisticsService(repo, logger, collector, stats.DefaultOptions())
	require.NoError(t, err)

	router := mux.NewRouter()
	NewTripHandler(statsService, logger, collector).RegisterRoutes(router)

	return &testServer{router: router, repo: repo, metrics: collector}
}

func (s *testServer) commit(t *testing.T, city models.City, trips ...*models.CanonicalTrip) {
	t.Helper()
	w, err := s.repo.CreateSummary(context.Background(), city)
	require.NoError(t, err)
	require.NoError(t, w.Append(trips))
	require.NoError(t, w.Commit())
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func subscriberTrips() []*models.CanonicalTrip {
	return []*models.CanonicalTrip{
		{DurationMinutes: 10, Month: 1, Hour: 8, DayOfWeek: "Monday", UserType: "Subscriber"},
		{DurationMinutes: 40, Month: 6, Hour: 17, DayOfWeek: "Friday", UserType: "Subscriber"},
	}
}

func TestListCities(t *testing.T) {
	s := newTestServer(t)
	s.commit(t, models.CityNYC, subscriberTrips()...)

	rec := s.get(t, "/api/cities")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cities []map[string]interface{} `json:"cities"`
		Total  int                      `json:"total"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "NYC", body.Cities[0]["city"])
	assert.NotContains(t, body.Cities[0], "Path")
}

func TestGetCityStatistics(t *testing.T) {
	s := newTestServer(t)
	s.commit(t, models.CityNYC, subscriberTrips()...)

	rec := s.get(t, "/api/cities/NYC/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "NYC", body["city"])

	counts := body["counts"].(map[string]interface{})
	assert.Equal(t, float64(2), counts["total"])

	durations := body["durations"].(map[string]interface{})
	assert.Equal(t, float64(30), durations["threshold_minutes"])
	assert.Equal(t, float64(1), durations["at_or_below"])
	assert.Equal(t, float64(1), durations["above"])

	// No customers: the mean is explicitly undefined.
	customer := body["by_user_type"].(map[string]interface{})["customer"].(map[string]interface{})
	assert.Nil(t, customer["mean"])
	assert.Equal(t, false, customer["defined"])

	rec = s.get(t, "/api/cities/NYC/stats?threshold=45")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, float64(2), body["durations"].(map[string]interface{})["at_or_below"])
}

func TestGetCityStatistics_Errors(t *testing.T) {
	s := newTestServer(t)
	s.commit(t, models.CityNYC, subscriberTrips()...)

	tests := []struct {
		target string
		code   int
	}{
		{"/api/cities/NYC/stats?threshold=abc", http.StatusBadRequest},
		{"/api/cities/NYC/stats?threshold=-5", http.StatusBadRequest},
		{"/api/cities/NYC/stats?threshold=NaN", http.StatusBadRequest},
		{"/api/cities/NYC/stats?threshold=Inf", http.StatusBadRequest},
		{"/api/cities/NYC/stats?threshold=-Inf", http.StatusBadRequest},
		{"/api/cities/Boston/stats", http.StatusNotFound},
		{"/api/cities/Chicago/stats", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := s.get(t, tt.target)
			require.Equal(t, tt.code, rec.Code)

			var body ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.APIRequestsTotal.WithLabelValues("/api/cities/{city}/stats", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.APIErrorsTotal.WithLabelValues("unknown_city", "/api/cities/{city}/stats")))
}

func TestGetHistogram(t *testing.T) {
	s := newTestServer(t)
	s.commit(t, models.CityChicago, append(subscriberTrips(),
		&models.CanonicalTrip{DurationMinutes: 5, Month: 6, Hour: 17, DayOfWeek: "Sunday", UserType: "Customer"},
	)...)

	rec := s.get(t, "/api/cities/Chicago/histogram?dimension=hour&user_type=Customer")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.Histogram
	decode(t, rec, &body)
	assert.Equal(t, models.CityChicago, body.City)
	assert.Equal(t, "hour", body.Dimension)
	assert.Equal(t, models.UserTypeCustomer, body.UserType)
	require.Len(t, body.Buckets, 24)
	assert.Equal(t, 1, body.Buckets[17].Count)

	rec = s.get(t, "/api/cities/Chicago/histogram?dimension=weekday")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, models.UserTypeSubscriber, body.UserType)
	require.Len(t, body.Buckets, 7)
	assert.Equal(t, "Monday", body.Buckets[0].Label)
	assert.Equal(t, 1, body.Buckets[0].Count)

	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/cities/Chicago/histogram").Code)
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/cities/Chicago/histogram?dimension=year").Code)
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/cities/Chicago/histogram?dimension=month&user_type=Member").Code)
}

func TestGetDurationHistogram(t *testing.T) {
	s := newTestServer(t)
	s.commit(t, models.CityWashington, subscriberTrips()...)

	rec := s.get(t, "/api/cities/Washington/durations")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.DurationHistogram
	decode(t, rec, &body)
	assert.Equal(t, models.CityWashington, body.City)
	assert.Equal(t, 75.0, body.CapMinutes)
	require.Len(t, body.Bins, 15)
	assert.Equal(t, 2.5, body.Bins[0].Midpoint)
	assert.Equal(t, 1, body.Bins[2].Count)
	assert.Equal(t, 1, body.Bins[8].Count)
	assert.Zero(t, body.Excluded)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	// Washington's summary directory does not exist yet.
	rec := s.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.commit(t, models.CityWashington, subscriberTrips()...)
	rec = s.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestDocs(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/api/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var spec map[string]interface{}
	decode(t, rec, &spec)
	assert.Equal(t, "3.0.0", spec["openapi"])
	paths := spec["paths"].(map[string]interface{})
	for _, path := range []string{"/api/cities", "/api/cities/{city}/stats", "/api/cities/{city}/histogram", "/api/cities/{city}/durations", "/health"} {
		assert.Contains(t, paths, path)
	}

	rec = s.get(t, "/api/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
	assert.Contains(t, rec.Body.String(), "Bike Share Statistics API")
}
