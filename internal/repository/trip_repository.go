package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/tripfile"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

// ctxCheckEvery bounds how many rows StreamTrips reads between cancellation checks.
const ctxCheckEvery = 4096

// TripRepository stores one condensed summary file per city.
type TripRepository interface {
	// Summary writes
	CreateSummary(ctx context.Context, city models.City) (SummaryWriter, error)

	// Summary reads
	StreamTrips(ctx context.Context, city models.City, fn func(*models.CanonicalTrip) error) error
	Stat(ctx context.Context, city models.City) (*SummaryInfo, error)
	ListSummaries(ctx context.Context) ([]*SummaryInfo, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// SummaryWriter is the single writer of one city's summary. Nothing is
// visible at the summary path until Commit; Abort discards everything.
type SummaryWriter interface {
	Append(trips []*models.CanonicalTrip) error
	Count() int
	Commit() error
	Abort() error
}

// SummaryInfo describes a committed summary file.
type SummaryInfo struct {
	City    models.City `json:"city"`
	Path    string      `json:"-"`
	Size    int64       `json:"size_bytes"`
	ModTime time.Time   `json:"modified_at"`
}

// fileRepository implements TripRepository on the local filesystem
type fileRepository struct {
	paths   map[models.City]string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewTripRepository creates a repository that keeps each city's summary at paths[city].
func NewTripRepository(paths map[models.City]string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) TripRepository {
	copied := make(map[models.City]string, len(paths))
	for city, path := range paths {
		copied[city] = path
	}
	return &fileRepository{
		paths:   copied,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *fileRepository) path(city models.City) (string, error) {
	path, ok := r.paths[city]
	if !ok || path == "" {
		return "", &NotFoundError{Resource: "city_summary", ID: string(city)}
	}
	return path, nil
}

// CreateSummary opens a temporary file next to the city's summary path.
func (r *fileRepository) CreateSummary(ctx context.Context, city models.City) (SummaryWriter, error) {
	path, err := r.path(city)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.metrics.RecordStoreError("create")
		return nil, fmt.Errorf("failed to create summary directory: %w", err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		r.metrics.RecordStoreError("create")
		return nil, fmt.Errorf("failed to create temporary summary: %w", err)
	}

	buffered := bufio.NewWriter(file)
	writer, err := tripfile.NewCanonicalWriter(buffered)
	if err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}

	r.logger.Debug(ctx, "[REPO_CREATE_SUMMARY] Temporary summary opened", logging.Fields{
		"city":      city,
		"temp_path": file.Name(),
		"path":      path,
	})

	return &summaryWriter{
		repo:     r,
		ctx:      ctx,
		city:     city,
		path:     path,
		file:     file,
		buffered: buffered,
		writer:   writer,
	}, nil
}

type summaryWriter struct {
	repo     *fileRepository
	ctx      context.Context
	city     models.City
	path     string
	file     *os.File
	buffered *bufio.Writer
	writer   *tripfile.CanonicalWriter

	mu     sync.Mutex
	closed bool
}

var errSummaryClosed = errors.New("summary writer already committed or aborted")

// Append writes a batch of trips in order.
func (w *summaryWriter) Append(trips []*models.CanonicalTrip) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errSummaryClosed
	}

	for _, trip := range trips {
		if err := w.writer.Write(trip); err != nil {
			w.repo.metrics.RecordStoreError("append")
			return fmt.Errorf("failed to append %s trip: %w", w.city, err)
		}
	}
	if err := w.writer.Flush(); err != nil {
		w.repo.metrics.RecordStoreError("append")
		return fmt.Errorf("failed to flush %s summary: %w", w.city, err)
	}
	w.repo.metrics.IngestionFlushSize.Observe(float64(len(trips)))
	return nil
}

func (w *summaryWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writer.Count()
}

// Commit flushes, syncs and renames the temporary file over the summary path.
func (w *summaryWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errSummaryClosed
	}
	w.closed = true

	timer := w.repo.metrics.NewTimer(w.repo.metrics.StoreOperationDuration.WithLabelValues("commit"))
	defer timer.ObserveDuration()

	tmp := w.file.Name()
	err := w.writer.Flush()
	if err == nil {
		err = w.buffered.Flush()
	}
	if err == nil {
		err = w.file.Sync()
	}
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, w.path)
	}
	if err != nil {
		os.Remove(tmp)
		w.repo.metrics.RecordStoreError("commit")
		return fmt.Errorf("failed to commit %s summary: %w", w.city, err)
	}

	w.repo.logger.Info(w.ctx, "[REPO_COMMIT] Summary committed", logging.Fields{
		"city":    w.city,
		"path":    w.path,
		"records": w.writer.Count(),
	})
	return nil
}

// Abort removes the temporary file. It is a no-op after Commit.
func (w *summaryWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	tmp := w.file.Name()
	w.file.Close()
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		w.repo.metrics.RecordStoreError("abort")
		return fmt.Errorf("failed to remove temporary %s summary: %w", w.city, err)
	}

	w.repo.logger.Warn(w.ctx, "[REPO_ABORT] Summary discarded", logging.Fields{
		"city":    w.city,
		"records": w.writer.Count(),
	})
	return nil
}

// StreamTrips calls fn for every trip in the city's summary, in file order.
// An error from fn stops the scan and is returned unchanged.
func (r *fileRepository) StreamTrips(ctx context.Context, city models.City, fn func(*models.CanonicalTrip) error) error {
	path, err := r.path(city)
	if err != nil {
		return err
	}

	timer := r.metrics.NewTimer(r.metrics.StoreOperationDuration.WithLabelValues("stream"))
	defer timer.ObserveDuration()

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return &NotFoundError{Resource: "city_summary", ID: string(city)}
	}
	if err != nil {
		r.metrics.RecordStoreError("stream")
		return fmt.Errorf("failed to open %s summary: %w", city, err)
	}
	defer file.Close()

	reader, err := tripfile.NewCanonicalReader(bufio.NewReader(file))
	if err != nil {
		r.metrics.RecordStoreError("stream")
		return fmt.Errorf("failed to read %s summary: %w", city, err)
	}

	for rows := 0; ; rows++ {
		if rows%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		trip, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			r.metrics.RecordStoreError("stream")
			return fmt.Errorf("failed to read %s summary: %w", city, err)
		}
		if err := fn(trip); err != nil {
			return err
		}
	}
}

// Stat describes the committed summary for city.
func (r *fileRepository) Stat(ctx context.Context, city models.City) (*SummaryInfo, error) {
	path, err := r.path(city)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Resource: "city_summary", ID: string(city)}
	}
	if err != nil {
		r.metrics.RecordStoreError("stat")
		return nil, fmt.Errorf("failed to stat %s summary: %w", city, err)
	}

	return &SummaryInfo{
		City:    city,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// ListSummaries returns every committed summary in city order.
func (r *fileRepository) ListSummaries(ctx context.Context) ([]*SummaryInfo, error) {
	summaries := make([]*SummaryInfo, 0, len(models.Cities))
	for _, city := range models.Cities {
		if _, ok := r.paths[city]; !ok {
			continue
		}
		info, err := r.Stat(ctx, city)
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, info)
	}
	return summaries, nil
}

// HealthCheck verifies every summary directory exists.
func (r *fileRepository) HealthCheck(ctx context.Context) error {
	for city, path := range r.paths {
		dir := filepath.Dir(path)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("summary directory for %s unavailable: %w", city, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("summary directory for %s is not a directory: %s", city, dir)
		}
	}
	return nil
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
