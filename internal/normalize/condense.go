package normalize

import (
	"fmt"

	"bikeshare-platform/internal/models"
)

// Condense converts one raw record into a canonical trip.
// It returns either a complete trip or an error, never a partial result.
func Condense(raw models.RawTripRecord, schema Schema) (*models.CanonicalTrip, error) {
	durationRaw, err := Field(raw, schema, models.ConceptDuration)
	if err != nil {
		return nil, err
	}
	startRaw, err := Field(raw, schema, models.ConceptStartTime)
	if err != nil {
		return nil, err
	}
	userTypeRaw, err := Field(raw, schema, models.ConceptUserType)
	if err != nil {
		return nil, err
	}

	minutes, err := schema.DurationMinutes(durationRaw)
	if err != nil {
		return nil, fmt.Errorf("condense %s duration: %w", schema.City(), err)
	}

	start, err := schema.StartTime(startRaw)
	if err != nil {
		return nil, fmt.Errorf("condense %s start time: %w", schema.City(), err)
	}

	return &models.CanonicalTrip{
		DurationMinutes: minutes,
		Month:           start.Month,
		Hour:            start.Hour,
		DayOfWeek:       start.DayOfWeek,
		UserType:        schema.UserType(userTypeRaw),
	}, nil
}

// CondenseCity resolves the schema for city and condenses raw through it.
func CondenseCity(raw models.RawTripRecord, city models.City) (*models.CanonicalTrip, error) {
	schema, err := Lookup(city)
	if err != nil {
		return nil, err
	}
	return Condense(raw, schema)
}
