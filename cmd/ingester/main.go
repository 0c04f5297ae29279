package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"bikeshare-platform/internal/config"
	"bikeshare-platform/internal/models"
	"bikeshare-platform/internal/repository"
	"bikeshare-platform/internal/services"
	"bikeshare-platform/pkg/logging"
	"bikeshare-platform/pkg/metrics"
)

const version = "1.0.0"

// cityList collects repeated -city flags.
type cityList []models.City

func (c *cityList) String() string {
	names := make([]string, len(*c))
	for i, city := range *c {
		names[i] = string(city)
	}
	return strings.Join(names, ",")
}

func (c *cityList) Set(value string) error {
	for _, name := range strings.Split(value, ",") {
		city, err := models.ParseCity(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		*c = append(*c, city)
	}
	return nil
}

func main() {
	// Parse command-line flags
	var cities cityList
	configPath := flag.String("config", os.Getenv(config.ConfigFileEnv), "Path to a YAML config file")
	flag.Var(&cities, "city", "City to ingest (NYC, Chicago, Washington); repeatable, default all")
	onError := flag.String("on-error", "", "Failure policy for bad records: skip or abort (default from config)")
	calculateStats := flag.Bool("calculate-stats", false, "Calculate statistics after ingestion")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *onError != "" {
		cfg.Pipeline.OnError = *onError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if len(cities) == 0 {
		cities = cityList(models.Cities[:])
	}

	logger := logging.NewStructuredLogger("bikeshare-ingester", version, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting trip ingestion", logging.Fields{
		"version":         version,
		"data_dir":        cfg.Pipeline.DataDir,
		"output_dir":      cfg.Pipeline.OutputDir,
		"cities":          cities.String(),
		"on_error":        cfg.Pipeline.OnError,
		"calculate_stats": *calculateStats,
	})

	metricsCollector := metrics.NewCollector("bikeshare_ingester", prometheus.DefaultRegisterer)
	tripRepo := repository.NewTripRepository(cfg.OutputPaths(), logger, metricsCollector)

	ingestionService := services.NewIngestionService(tripRepo, logger, metricsCollector, cfg.Pipeline.FlushEvery, cfg.Pipeline.OnError)

	sources := make([]services.CitySource, 0, len(cities))
	for _, city := range cities {
		sources = append(sources, services.CitySource{City: city, Path: cfg.InputPath(city)})
	}

	result, err := ingestionService.IngestCities(ctx, sources)
	if result != nil {
		printIngestion(result)
	}
	if err != nil {
		logger.Error(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
		os.Exit(1)
	}

	// Calculate statistics if requested
	if *calculateStats {
		statsService, err := services.NewStatisticsService(tripRepo, logger, metricsCollector, cfg.StatsOptions())
		if err != nil {
			logger.Fatal(ctx, "[STATS_ERROR] Invalid statistics options", logging.Fields{}, err)
		}

		all, err := statsService.CalculateAllStatistics(ctx)
		if err != nil {
			logger.Error(ctx, "[STATS_ERROR] Statistics calculation failed", logging.Fields{}, err)
			fmt.Printf("Statistics calculation failed: %v\n", err)
			os.Exit(1)
		}
		printStatistics(all)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"run_id":             result.RunID,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}

func printIngestion(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:             %s\n", result.RunID)
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	for _, city := range result.Cities {
		if city == nil {
			continue
		}
		status := "committed"
		if !city.Committed {
			status = "not written"
		}
		fmt.Printf("  %-11s %8d read, %8d condensed, %6d failed (%s)\n",
			city.City, city.TotalRecords, city.SuccessfulRecords, city.FailedRecords, status)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}

func printStatistics(all []*models.CityStatistics) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("STATISTICS")
	fmt.Println(strings.Repeat("=", 80))

	for _, s := range all {
		fmt.Printf("\n%s\n", s.City)
		fmt.Printf("  Trips:              %d (%d subscribers, %d customers)\n",
			s.Counts.Total, s.Counts.Subscribers, s.Counts.Customers)
		if s.Counts.Total > 0 {
			fmt.Printf("  Subscriber share:   %.1f%%\n", 100*float64(s.Counts.Subscribers)/float64(s.Counts.Total))
		}

		fmt.Printf("  Average duration:   %s\n", formatMean(s.Durations.Overall))
		fmt.Printf("  Over %.0f minutes:    %d of %d\n",
			s.Durations.ThresholdMinutes, s.Durations.Above, s.Durations.AtOrBelow+s.Durations.Above)

		fmt.Printf("  Subscriber average: %s\n", formatMean(s.ByUserType.Subscriber))
		fmt.Printf("  Customer average:   %s\n", formatMean(s.ByUserType.Customer))
	}
}

func formatMean(a models.Average) string {
	v, err := a.Value()
	if err != nil {
		return "undefined (no trips)"
	}
	return fmt.Sprintf("%.2f min over %d trips", v, a.Count)
}
