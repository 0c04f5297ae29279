package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/repository"
	"bikeshare-platform/internal/stats"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

// StatisticsService computes per-city statistics from committed summaries
type StatisticsService struct {
	repo    repository.TripRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	opts    stats.Options

	mu     sync.Mutex
	cache  map[models.City]*cacheEntry
	hits   int64
	misses int64
}

// Only aggregators at the default threshold are cached, one per city. An
// entry is reusable while the summary it was built from is unchanged.
type cacheEntry struct {
	modTime time.Time
	size    int64
	agg     *stats.Aggregator
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.TripRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts stats.Options) (*StatisticsService, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statistics options: %w", err)
	}
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		opts:    opts,
		cache:   make(map[models.City]*cacheEntry),
	}, nil
}

// DefaultThreshold is the duration split used when a caller does not pick one.
func (s *StatisticsService) DefaultThreshold() float64 {
	return s.opts.ThresholdMinutes
}

// aggregate returns an aggregator over city's summary. At the default
// threshold the cached one is reused when the summary file has not changed
// since it was built; other thresholds are always computed afresh.
func (s *StatisticsService) aggregate(ctx context.Context, city models.City, threshold float64) (*stats.Aggregator, error) {
	if threshold != s.opts.ThresholdMinutes {
		return s.summarize(ctx, city, threshold)
	}

	info, err := s.repo.Stat(ctx, city)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	entry, ok := s.cache[city]
	if ok && entry.modTime.Equal(info.ModTime) && entry.size == info.Size {
		s.hits++
		s.metrics.UpdateCacheHitRatio(s.hits, s.misses)
		s.mu.Unlock()
		return entry.agg, nil
	}
	s.misses++
	s.metrics.UpdateCacheHitRatio(s.hits, s.misses)
	s.mu.Unlock()

	agg, err := s.summarize(ctx, city, threshold)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[city] = &cacheEntry{modTime: info.ModTime, size: info.Size, agg: agg}
	s.mu.Unlock()

	return agg, nil
}

func (s *StatisticsService) summarize(ctx context.Context, city models.City, threshold float64) (*stats.Aggregator, error) {
	opts := s.opts
	opts.ThresholdMinutes = threshold

	timer := s.metrics.NewTimer(s.metrics.StatsCalculationDuration.WithLabelValues(string(city)))
	agg, err := stats.Summarize(opts, func(fn func(*models.CanonicalTrip) error) error {
		return s.repo.StreamTrips(ctx, city, fn)
	})
	elapsed := timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", city, err)
	}

	s.logger.Debug(ctx, "[STATS_CALC] City summary aggregated", logging.Fields{
		"city":              city,
		"threshold_minutes": threshold,
		"trips":             agg.CountByUserType().Total,
		"duration_ms":       elapsed.Milliseconds(),
	})
	return agg, nil
}

// GetCityStatistics returns counts and mean durations for city, splitting
// durations at threshold minutes.
func (s *StatisticsService) GetCityStatistics(ctx context.Context, city models.City, threshold float64) (*models.CityStatistics, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, &models.ValidationError{
			Field:   "threshold",
			Value:   fmt.Sprint(threshold),
			Message: "threshold must be a finite number",
		}
	}
	if threshold < 0 {
		return nil, &models.ValidationError{
			Field:   "threshold",
			Value:   fmt.Sprint(threshold),
			Message: "threshold must not be negative",
		}
	}
	agg, err := s.aggregate(ctx, city, threshold)
	if err != nil {
		return nil, err
	}
	return agg.Statistics(city), nil
}

// GetHistogram counts one user type's trips per month, hour or weekday.
func (s *StatisticsService) GetHistogram(ctx context.Context, city models.City, dim stats.Dimension, userType models.UserType) (*models.Histogram, error) {
	agg, err := s.aggregate(ctx, city, s.opts.ThresholdMinutes)
	if err != nil {
		return nil, err
	}
	buckets, err := agg.GroupBy(dim, userType)
	if err != nil {
		return nil, err
	}
	return &models.Histogram{
		City:      city,
		Dimension: string(dim),
		UserType:  userType,
		Buckets:   buckets,
	}, nil
}

// GetDurationHistogram bins one user type's trip durations.
func (s *StatisticsService) GetDurationHistogram(ctx context.Context, city models.City, userType models.UserType) (*models.DurationHistogram, error) {
	agg, err := s.aggregate(ctx, city, s.opts.ThresholdMinutes)
	if err != nil {
		return nil, err
	}
	h := agg.DurationHistogram(userType)
	h.City = city
	return &h, nil
}

// ListCities returns the cities that have a committed summary.
func (s *StatisticsService) ListCities(ctx context.Context) ([]*repository.SummaryInfo, error) {
	return s.repo.ListSummaries(ctx)
}

// CalculateAllStatistics computes statistics for every committed summary at
// the default threshold. A city that fails is logged and skipped.
func (s *StatisticsService) CalculateAllStatistics(ctx context.Context) ([]*models.CityStatistics, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[STATS_CALC_START] Starting statistics calculation", logging.Fields{
		"threshold_minutes": s.opts.ThresholdMinutes,
		"stage":             "INITIALIZATION",
	})

	summaries, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	results := make([]*models.CityStatistics, 0, len(summaries))
	for _, summary := range summaries {
		cityStats, err := s.GetCityStatistics(ctx, summary.City, s.opts.ThresholdMinutes)
		if err != nil {
			s.logger.Error(ctx, "[STATS_CALC_ERROR] Failed to calculate statistics", logging.Fields{
				"city": summary.City,
			}, err)
			continue
		}
		results = append(results, cityStats)

		s.logger.Info(ctx, "[STATS_CITY_COMPLETE] City statistics calculated", logging.Fields{
			"city":  summary.City,
			"trips": cityStats.Counts.Total,
		})
	}

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Statistics calculation completed", logging.Fields{
		"total_cities":     len(summaries),
		"calculated":       len(results),
		"duration_seconds": time.Since(startTime).Seconds(),
		"stage":            "COMPLETE",
	})

	return results, nil
}

// HealthCheck reports whether the summary store is reachable.
func (s *StatisticsService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
