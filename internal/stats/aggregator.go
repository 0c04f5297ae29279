// Package stats reduces canonical trips to descriptive statistics in one pass.
package stats

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"bikeshare-platform/internal/models"
)

// Dimension selects the calendar field a histogram groups by.
type Dimension string

const (
	DimensionMonth   Dimension = "month"
	DimensionHour    Dimension = "hour"
	DimensionWeekday Dimension = "weekday"
)

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimensionMonth, DimensionHour, DimensionWeekday:
		return d, nil
	}
	return "", &models.ValidationError{Field: "dimension", Value: s, Message: "dimension must be month, hour or weekday"}
}

// Options fixes the parameters of the threshold split and duration histogram.
type Options struct {
	ThresholdMinutes    float64
	HistogramCapMinutes float64
	HistogramBinMinutes float64
}

// DefaultOptions mirrors the 30 minute rental window and 5 minute bins up to 75 minutes.
func DefaultOptions() Options {
	return Options{
		ThresholdMinutes:    30,
		HistogramCapMinutes: 75,
		HistogramBinMinutes: 5,
	}
}

// Validate checks that the histogram has at least one bin.
func (o Options) Validate() error {
	if o.HistogramBinMinutes <= 0 {
		return fmt.Errorf("histogram bin width must be positive, got %v", o.HistogramBinMinutes)
	}
	if o.HistogramCapMinutes <= 0 {
		return fmt.Errorf("histogram cap must be positive, got %v", o.HistogramCapMinutes)
	}
	return nil
}

func (o Options) binCount() int {
	return int(math.Ceil(o.HistogramCapMinutes / o.HistogramBinMinutes))
}

const (
	subscriberIdx = 0
	customerIdx   = 1
)

// userTypeIndex treats anything other than Subscriber as a customer.
func userTypeIndex(userType string) int {
	if userType == string(models.UserTypeSubscriber) {
		return subscriberIdx
	}
	return customerIdx
}

// Aggregator accumulates running totals over a sequence of trips.
// Memory is fixed: one counter per statistic and one per histogram bucket.
type Aggregator struct {
	opts Options

	overall   models.Average
	byType    [2]models.Average
	atOrBelow int
	above     int

	months   [2][12]int
	hours    [2][24]int
	weekdays [2][7]int

	durationBins [2][]int
	excluded     [2]int
}

// NewAggregator returns an empty aggregator.
func NewAggregator(opts Options) (*Aggregator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{opts: opts}
	for i := range a.durationBins {
		a.durationBins[i] = make([]int, opts.binCount())
	}
	return a, nil
}

// Add folds one trip into every running total.
func (a *Aggregator) Add(trip *models.CanonicalTrip) error {
	if trip.Month < 1 || trip.Month > 12 {
		return &models.ValidationError{Field: "month", Value: strconv.Itoa(trip.Month), Message: "month must be between 1 and 12"}
	}
	if trip.Hour < 0 || trip.Hour > 23 {
		return &models.ValidationError{Field: "hour", Value: strconv.Itoa(trip.Hour), Message: "hour must be between 0 and 23"}
	}
	weekday, ok := models.WeekdayIndex(trip.DayOfWeek)
	if !ok {
		return &models.ValidationError{Field: "day_of_week", Value: trip.DayOfWeek, Message: "unknown weekday"}
	}

	d := trip.DurationMinutes
	idx := userTypeIndex(trip.UserType)

	a.overall.Add(d)
	a.byType[idx].Add(d)
	if d <= a.opts.ThresholdMinutes {
		a.atOrBelow++
	} else {
		a.above++
	}

	a.months[idx][trip.Month-1]++
	a.hours[idx][trip.Hour]++
	a.weekdays[idx][weekday]++

	if d >= 0 && d < a.opts.HistogramCapMinutes {
		bin := int(d / a.opts.HistogramBinMinutes)
		if bin >= len(a.durationBins[idx]) {
			bin = len(a.durationBins[idx]) - 1
		}
		a.durationBins[idx][bin]++
	} else {
		a.excluded[idx]++
	}
	return nil
}

// CountByUserType returns subscriber, customer and total trip counts.
func (a *Aggregator) CountByUserType() models.UserTypeCounts {
	return models.UserTypeCounts{
		Subscribers: a.byType[subscriberIdx].Count,
		Customers:   a.byType[customerIdx].Count,
		Total:       a.overall.Count,
	}
}

// DurationBuckets splits trips at the configured threshold and reports the
// overall mean, which is undefined for an empty sequence.
func (a *Aggregator) DurationBuckets() models.DurationSplit {
	return models.DurationSplit{
		ThresholdMinutes: a.opts.ThresholdMinutes,
		AtOrBelow:        a.atOrBelow,
		Above:            a.above,
		Overall:          a.overall,
	}
}

// MeanDurationByUserType reports the mean duration of each group independently.
func (a *Aggregator) MeanDurationByUserType() models.UserTypeDurations {
	return models.UserTypeDurations{
		Subscriber: a.byType[subscriberIdx],
		Customer:   a.byType[customerIdx],
	}
}

// GroupBy counts trips of one user type per bucket of dim. Every bucket is
// present: months 1-12 and hours 0-23 ascending, weekdays Monday to Sunday.
func (a *Aggregator) GroupBy(dim Dimension, userType models.UserType) ([]models.Bucket, error) {
	idx := userTypeIndex(string(userType))

	switch dim {
	case DimensionMonth:
		buckets := make([]models.Bucket, 12)
		for i, n := range a.months[idx] {
			label, err := models.MonthAbbrev(i + 1)
			if err != nil {
				return nil, err
			}
			buckets[i] = models.Bucket{Key: i + 1, Label: label, Count: n}
		}
		return buckets, nil
	case DimensionHour:
		buckets := make([]models.Bucket, 24)
		for i, n := range a.hours[idx] {
			buckets[i] = models.Bucket{Key: i, Label: strconv.Itoa(i), Count: n}
		}
		return buckets, nil
	case DimensionWeekday:
		buckets := make([]models.Bucket, 7)
		for i, n := range a.weekdays[idx] {
			label, err := models.WeekdayName(i)
			if err != nil {
				return nil, err
			}
			buckets[i] = models.Bucket{Key: i, Label: label, Count: n}
		}
		return buckets, nil
	default:
		return nil, &models.ValidationError{Field: "dimension", Value: string(dim), Message: "dimension must be month, hour or weekday"}
	}
}

// DurationHistogram bins durations of one user type in [0, cap).
// Trips outside that range are counted as excluded.
func (a *Aggregator) DurationHistogram(userType models.UserType) models.DurationHistogram {
	idx := userTypeIndex(string(userType))
	width := a.opts.HistogramBinMinutes

	bins := make([]models.DurationBin, len(a.durationBins[idx]))
	for i, n := range a.durationBins[idx] {
		lower := float64(i) * width
		upper := math.Min(lower+width, a.opts.HistogramCapMinutes)
		bins[i] = models.DurationBin{
			Lower:    lower,
			Upper:    upper,
			Midpoint: (lower + upper) / 2,
			Count:    n,
		}
	}

	return models.DurationHistogram{
		UserType:   userType,
		CapMinutes: a.opts.HistogramCapMinutes,
		Bins:       bins,
		Excluded:   a.excluded[idx],
	}
}

// Statistics assembles the full summary for city.
func (a *Aggregator) Statistics(city models.City) *models.CityStatistics {
	return &models.CityStatistics{
		City:         city,
		Counts:       a.CountByUserType(),
		Durations:    a.DurationBuckets(),
		ByUserType:   a.MeanDurationByUserType(),
		CalculatedAt: time.Now().UTC(),
	}
}

// Summarize runs every trip yielded by each through a fresh aggregator.
func Summarize(opts Options, each func(fn func(*models.CanonicalTrip) error) error) (*Aggregator, error) {
	agg, err := NewAggregator(opts)
	if err != nil {
		return nil, err
	}
	if err := each(agg.Add); err != nil {
		return nil, err
	}
	return agg, nil
}
