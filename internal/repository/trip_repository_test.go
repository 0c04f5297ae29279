package repository

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

func newTestRepository(t *testing.T) (TripRepository, string) {
	t.Helper()
	dir := t.TempDir()

	logger := logging.NewStructuredLogger("repo-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)

	repo := NewTripRepository(map[models.City]string{
		models.CityNYC:     filepath.Join(dir, "NYC-2016-Summary.csv"),
		models.CityChicago: filepath.Join(dir, "out", "Chicago-2016-Summary.csv"),
	}, logger, metrics.NewCollector("test", prometheus.NewRegistry()))
	return repo, dir
}

var sampleTrips = []*models.CanonicalTrip{
	{DurationMinutes: 13.983333333333333, Month: 1, Hour: 0, DayOfWeek: "Friday", UserType: "Customer"},
	{DurationMinutes: 15.433333333333334, Month: 3, Hour: 23, DayOfWeek: "Thursday", UserType: "Subscriber"},
	{DurationMinutes: 7.123116666666667, Month: 3, Hour: 22, DayOfWeek: "Thursday", UserType: "Subscriber"},
}

func collect(t *testing.T, repo TripRepository, city models.City) []*models.CanonicalTrip {
	t.Helper()
	var trips []*models.CanonicalTrip
	require.NoError(t, repo.StreamTrips(context.Background(), city, func(trip *models.CanonicalTrip) error {
		trips = append(trips, trip)
		return nil
	}))
	return trips
}

func TestSummaryWriter_CommitThenStream(t *testing.T) {
	repo, dir := newTestRepository(t)
	ctx := context.Background()

	w, err := repo.CreateSummary(ctx, models.CityNYC)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleTrips[:2]))
	require.NoError(t, w.Append(sampleTrips[2:]))
	assert.Equal(t, 3, w.Count())

	// Nothing is visible before commit.
	_, err = os.Stat(filepath.Join(dir, "NYC-2016-Summary.csv"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, w.Commit())
	assert.ErrorIs(t, w.Append(sampleTrips), errSummaryClosed)
	assert.NoError(t, w.Abort())

	got := collect(t, repo, models.CityNYC)
	require.Len(t, got, len(sampleTrips))
	for i := range sampleTrips {
		assert.Equal(t, *sampleTrips[i], *got[i])
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestSummaryWriter_AbortLeavesNoFile(t *testing.T) {
	repo, dir := newTestRepository(t)

	w, err := repo.CreateSummary(context.Background(), models.CityChicago)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleTrips))
	require.NoError(t, w.Abort())
	assert.ErrorIs(t, w.Commit(), errSummaryClosed)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = repo.Stat(context.Background(), models.CityChicago)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSummaryWriter_AbortKeepsPreviousSummary(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	w, err := repo.CreateSummary(ctx, models.CityNYC)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleTrips[:1]))
	require.NoError(t, w.Commit())

	w, err = repo.CreateSummary(ctx, models.CityNYC)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleTrips))
	require.NoError(t, w.Abort())

	assert.Len(t, collect(t, repo, models.CityNYC), 1)
}

func TestStreamTrips_Errors(t *testing.T) {
	repo, dir := newTestRepository(t)
	ctx := context.Background()
	noop := func(*models.CanonicalTrip) error { return nil }

	var notFound *NotFoundError
	assert.ErrorAs(t, repo.StreamTrips(ctx, models.CityNYC, noop), &notFound)
	assert.ErrorAs(t, repo.StreamTrips(ctx, models.CityWashington, noop), &notFound)

	w, err := repo.CreateSummary(ctx, models.CityNYC)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleTrips))
	require.NoError(t, w.Commit())

	stop := errors.New("stop")
	calls := 0
	err = repo.StreamTrips(ctx, models.CityNYC, func(*models.CanonicalTrip) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, repo.StreamTrips(cancelled, models.CityNYC, noop), context.Canceled)

	bad := filepath.Join(dir, "NYC-2016-Summary.csv")
	require.NoError(t, os.WriteFile(bad, []byte("duration,month,hour,day_of_week,user_type\nx,1,0,Friday,Customer\n"), 0o644))
	err = repo.StreamTrips(ctx, models.CityNYC, noop)
	assert.Equal(t, "parse_error", models.ErrorKind(err))
}

func TestListSummariesAndStat(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	list, err := repo.ListSummaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, city := range []models.City{models.CityChicago, models.CityNYC} {
		w, err := repo.CreateSummary(ctx, city)
		require.NoError(t, err)
		require.NoError(t, w.Commit())
	}

	list, err = repo.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.CityNYC, list[0].City)
	assert.Equal(t, models.CityChicago, list[1].City)
	assert.Greater(t, list[0].Size, int64(0))
	assert.False(t, list[0].ModTime.IsZero())
}

func TestHealthCheck(t *testing.T) {
	repo, dir := newTestRepository(t)
	ctx := context.Background()

	// Chicago's directory does not exist until a summary is created there.
	assert.Error(t, repo.HealthCheck(ctx))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0o755))
	assert.NoError(t, repo.HealthCheck(ctx))
}

func TestCreateSummary_UnknownCity(t *testing.T) {
	repo, _ := newTestRepository(t)
	_, err := repo.CreateSummary(context.Background(), models.CityWashington)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
