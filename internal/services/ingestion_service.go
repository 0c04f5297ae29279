package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bikeshare-platform/internal/config"
	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/normalize"
	"bikeshare-platform/internal/repository"
	"bikeshare-platform/internal/tripfile"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

// maxErrorSamples caps the per-city error messages kept in a result.
const maxErrorSamples = 100

// IngestionService condenses raw city exports into summary files
type IngestionService struct {
	repo       repository.TripRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	flushEvery int
	onError    string
}

// CitySource names the raw export to ingest for one city.
type CitySource struct {
	City models.City
	Path string
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	RunID             string
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Cities            []*CityIngestionResult
	Errors            []string
}

// CityIngestionResult contains per-city ingestion statistics
type CityIngestionResult struct {
	City              models.City
	InputPath         string
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	ErrorsByKind      map[string]int
	Committed         bool
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service. flushEvery is the
// number of condensed trips buffered per summary append; onError is
// config.OnErrorSkip or config.OnErrorAbort.
func NewIngestionService(repo repository.TripRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, flushEvery int, onError string) *IngestionService {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	if onError != config.OnErrorAbort {
		onError = config.OnErrorSkip
	}
	return &IngestionService{
		repo:       repo,
		logger:     logger,
		metrics:    metricsCollector,
		flushEvery: flushEvery,
		onError:    onError,
	}
}

// IngestCities runs one worker per source. Workers only stage their
// summaries; they are committed together once every worker has returned.
// Under the skip policy a failed record or city is reported in the result and
// the rest of the run still commits. Under abort, or when ctx is cancelled,
// the first failure cancels every worker and no summary from the run is
// committed.
func (s *IngestionService) IngestCities(ctx context.Context, sources []CitySource) (*IngestionResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	s.logger.Info(ctx, "[INGEST_START] Starting trip ingestion", logging.Fields{
		"cities":      len(sources),
		"flush_every": s.flushEvery,
		"on_error":    s.onError,
		"stage":       "INITIALIZATION",
	})

	result := &IngestionResult{
		RunID:      runID,
		TotalFiles: len(sources),
		Cities:     make([]*CityIngestionResult, len(sources)),
		Errors:     make([]string, 0),
	}
	staged := make([]repository.SummaryWriter, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			cityResult, writer, err := s.ingestCity(gctx, src)
			result.Cities[i] = cityResult
			staged[i] = writer
			if err == nil {
				return nil
			}

			s.logger.Error(gctx, "[INGEST_CITY_ERROR] City ingestion failed", logging.Fields{
				"city":       src.City,
				"input_path": src.Path,
				"stage":      "CITY_PROCESSING",
			}, err)
			if s.onError == config.OnErrorAbort {
				return fmt.Errorf("failed to ingest %s: %w", src.City, err)
			}
			cityResult.Errors = append(cityResult.Errors, err.Error())
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr == nil {
		runErr = s.commitSummaries(ctx, result.Cities, staged)
	}
	if runErr != nil {
		s.discardSummaries(ctx, staged)
	}

	for _, cityResult := range result.Cities {
		if cityResult == nil {
			continue
		}
		result.TotalRecords += cityResult.TotalRecords
		result.SuccessfulRecords += cityResult.SuccessfulRecords
		result.FailedRecords += cityResult.FailedRecords
		for _, msg := range cityResult.Errors {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", cityResult.City, msg))
		}
	}
	result.Duration = time.Since(startTime)

	if runErr != nil {
		s.logger.Error(ctx, "[INGEST_ABORTED] Trip ingestion aborted", logging.Fields{
			"total_records":  result.TotalRecords,
			"failed_records": result.FailedRecords,
			"stage":          "ABORTED",
		}, runErr)
		return result, fmt.Errorf("ingestion run %s aborted: %w", runID, runErr)
	}

	s.logger.Info(ctx, "[INGEST_COMPLETE] Trip ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// commitSummaries publishes every staged summary. Under abort the first
// failed commit stops the loop and is returned; under skip it is recorded
// against its city.
func (s *IngestionService) commitSummaries(ctx context.Context, cities []*CityIngestionResult, staged []repository.SummaryWriter) error {
	for i, writer := range staged {
		if writer == nil {
			continue
		}
		cityResult := cities[i]
		cityLogger := s.logger.WithFields(logging.Fields{
			"city":       cityResult.City,
			"input_path": cityResult.InputPath,
		})

		if err := writer.Commit(); err != nil {
			cityLogger.Error(ctx, "[INGEST_COMMIT_ERROR] Failed to commit summary", logging.Fields{}, err)
			if s.onError == config.OnErrorAbort {
				return fmt.Errorf("failed to commit %s: %w", cityResult.City, err)
			}
			cityResult.Errors = append(cityResult.Errors, err.Error())
			continue
		}
		cityResult.Committed = true
		s.metrics.RecordCondensed(string(cityResult.City), cityResult.SuccessfulRecords)

		cityLogger.Info(ctx, "[INGEST_CITY_SUCCESS] City summary written", logging.Fields{
			"total_records":      cityResult.TotalRecords,
			"successful_records": cityResult.SuccessfulRecords,
			"failed_records":     cityResult.FailedRecords,
			"errors_by_kind":     cityResult.ErrorsByKind,
			"stage":              "CITY_COMPLETE",
		})
	}
	return nil
}

// discardSummaries aborts every staged summary that was not committed.
func (s *IngestionService) discardSummaries(ctx context.Context, staged []repository.SummaryWriter) {
	for _, writer := range staged {
		if writer == nil {
			continue
		}
		if err := writer.Abort(); err != nil {
			s.logger.Error(ctx, "[INGEST_ABORT_ERROR] Failed to discard summary", logging.Fields{}, err)
		}
	}
}

// ingestCity condenses one raw export into a staged summary writer, which the
// caller commits or aborts. On error the writer is already aborted and nil is
// returned in its place.
func (s *IngestionService) ingestCity(ctx context.Context, src CitySource) (result *CityIngestionResult, writer repository.SummaryWriter, err error) {
	startTime := time.Now()
	result = &CityIngestionResult{
		City:         src.City,
		InputPath:    src.Path,
		ErrorsByKind: make(map[string]int),
	}
	cityLogger := s.logger.WithFields(logging.Fields{
		"city":       src.City,
		"input_path": src.Path,
	})
	defer func() {
		result.Duration = time.Since(startTime)
		s.metrics.IngestionDuration.WithLabelValues(string(src.City)).Observe(result.Duration.Seconds())
	}()

	schema, err := normalize.Lookup(src.City)
	if err != nil {
		return result, nil, err
	}

	file, err := os.Open(src.Path)
	if err != nil {
		return result, nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	reader, err := tripfile.NewRawReader(bufio.NewReader(file))
	if err != nil {
		return result, nil, fmt.Errorf("failed to read input: %w", err)
	}
	if err := checkHeader(reader.Header(), schema); err != nil {
		return result, nil, err
	}

	writer, err = s.repo.CreateSummary(ctx, src.City)
	if err != nil {
		return result, nil, fmt.Errorf("failed to create summary: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if abortErr := writer.Abort(); abortErr != nil {
			cityLogger.Error(ctx, "[INGEST_ABORT_ERROR] Failed to discard summary", logging.Fields{}, abortErr)
		}
		writer = nil
	}()

	cityLogger.Info(ctx, "[INGEST_CITY_START] Reading city export", logging.Fields{
		"columns": len(reader.Header()),
		"stage":   "CITY_START",
	})

	batch := make([]*models.CanonicalTrip, 0, s.flushEvery)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.Append(batch); err != nil {
			return err
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err = ctx.Err(); err != nil {
			return result, writer, err
		}

		raw, readErr := reader.Next()
		if readErr == io.EOF {
			break
		}
		result.TotalRecords++

		var parseErr *models.ParseError
		if readErr != nil && !errors.As(readErr, &parseErr) {
			err = readErr
			return result, writer, err
		}

		var trip *models.CanonicalTrip
		condenseErr := readErr
		if condenseErr == nil {
			trip, condenseErr = normalize.Condense(raw, schema)
		}
		if condenseErr != nil {
			if err = s.recordFailure(ctx, result, reader.Line(), condenseErr); err != nil {
				return result, writer, err
			}
			continue
		}

		batch = append(batch, trip)
		if len(batch) >= s.flushEvery {
			if err = flush(); err != nil {
				return result, writer, err
			}
		}
	}

	if err = flush(); err != nil {
		return result, writer, err
	}

	cityLogger.Info(ctx, "[INGEST_CITY_STAGED] City export condensed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
	})

	return result, writer, nil
}

// recordFailure counts a rejected record. It returns a non-nil error when the
// failure policy requires the run to stop.
func (s *IngestionService) recordFailure(ctx context.Context, result *CityIngestionResult, line int, err error) error {
	kind := models.ErrorKind(err)
	result.FailedRecords++
	result.ErrorsByKind[kind]++
	s.metrics.RecordIngestionError(string(result.City), kind)

	if s.onError == config.OnErrorAbort {
		return fmt.Errorf("line %d: %w", line, err)
	}

	if len(result.Errors) < maxErrorSamples {
		result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
		s.logger.Warn(ctx, "[INGEST_RECORD_SKIPPED] Record could not be condensed", logging.Fields{
			"city":       result.City,
			"line":       line,
			"error_kind": kind,
			"error":      err.Error(),
		})
	}
	return nil
}

// checkHeader rejects an export that lacks a column the schema reads, so a
// wrong file fails once instead of on every row.
func checkHeader(header []string, schema normalize.Schema) error {
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	for _, concept := range []models.Concept{models.ConceptDuration, models.ConceptStartTime, models.ConceptUserType} {
		field := schema.FieldName(concept)
		if !present[field] {
			return &models.SchemaError{City: schema.City(), Field: field}
		}
	}
	return nil
}
