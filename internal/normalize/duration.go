package normalize

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"bikeshare-platform/internal/models"
)

const (
	secondsPerMinute      = 60.0
	millisecondsPerMinute = 60000.0
)

var errNotFinite = errors.New("value is not a finite number")

// DurationMinutes converts a city's raw duration to minutes.
// Washington reports milliseconds; NYC and Chicago report seconds.
func DurationMinutes(raw string, city models.City) (float64, error) {
	s, err := Lookup(city)
	if err != nil {
		return 0, err
	}
	return s.DurationMinutes(raw)
}

func durationMinutes(raw, field string, divisor float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &models.ParseError{Field: field, Value: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.ParseError{Field: field, Value: raw, Err: errNotFinite}
	}
	return v / divisor, nil
}
