package normalize

import (
	"errors"
	"strings"
	"time"

	"bikeshare-platform/internal/models"
)

// Start timestamps are M/D/YYYY H:MM with optional :SS, read as 24-hour
// wall-clock time with no zone.
const (
	layoutMinutes = "1/2/2006 15:04"
	layoutSeconds = "1/2/2006 15:04:05"
)

// DecomposeTimestamp extracts month, hour and weekday from a start timestamp.
// Malformed input yields a ParseError, impossible dates a DateError.
func DecomposeTimestamp(raw string) (models.TripTime, error) {
	value := strings.TrimSpace(raw)

	layout := layoutMinutes
	if strings.Count(value, ":") == 2 {
		layout = layoutSeconds
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		var parseErr *time.ParseError
		if errors.As(err, &parseErr) && strings.HasSuffix(parseErr.Message, "out of range") {
			return models.TripTime{}, &models.DateError{
				Value:  raw,
				Reason: strings.TrimPrefix(parseErr.Message, ": "),
			}
		}
		return models.TripTime{}, &models.ParseError{Field: "start_time", Value: raw, Err: err}
	}

	// time.Weekday counts from Sunday.
	dayOfWeek, err := models.WeekdayName((int(t.Weekday()) + 6) % 7)
	if err != nil {
		return models.TripTime{}, err
	}

	return models.TripTime{
		Month:     int(t.Month()),
		Hour:      t.Hour(),
		DayOfWeek: dayOfWeek,
	}, nil
}
