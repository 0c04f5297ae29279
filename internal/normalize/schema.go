// Package normalize turns city-specific trip rows into canonical trips.
//
// Each supported city is a schema variant carrying its field-name table,
// duration unit and user-type rule. Callers resolve a variant once with
// Lookup and then condense every row of that city's file through it.
package normalize

import (
	"fmt"

	"bikeshare-platform/internal/models"
)

// Schema is the normalization rule set of one source city.
type Schema interface {
	City() models.City
	// FieldName returns the source column that holds concept.
	FieldName(concept models.Concept) string
	DurationMinutes(raw string) (float64, error)
	StartTime(raw string) (models.TripTime, error)
	UserType(raw string) string
}

type citySchema struct {
	city            models.City
	fields          map[models.Concept]string
	durationDivisor float64
	userType        func(raw string) string
}

var (
	secondsBasedFields = map[models.Concept]string{
		models.ConceptDuration:  "tripduration",
		models.ConceptStartTime: "starttime",
		models.ConceptUserType:  "usertype",
	}

	schemas = map[models.City]*citySchema{
		models.CityNYC: {
			city:            models.CityNYC,
			fields:          secondsBasedFields,
			durationDivisor: secondsPerMinute,
			userType:        passThroughUserType,
		},
		models.CityChicago: {
			city:            models.CityChicago,
			fields:          secondsBasedFields,
			durationDivisor: secondsPerMinute,
			userType:        passThroughUserType,
		},
		models.CityWashington: {
			city: models.CityWashington,
			fields: map[models.Concept]string{
				models.ConceptDuration:  "Duration (ms)",
				models.ConceptStartTime: "Start date",
				models.ConceptUserType:  "Member Type",
			},
			durationDivisor: millisecondsPerMinute,
			userType:        washingtonUserType,
		},
	}
)

// Lookup returns the schema variant for city.
func Lookup(city models.City) (Schema, error) {
	s, ok := schemas[city]
	if !ok {
		return nil, &models.SchemaError{
			City:    city,
			Message: fmt.Sprintf("no schema registered for city %q", city),
		}
	}
	return s, nil
}

func (s *citySchema) City() models.City {
	return s.city
}

func (s *citySchema) FieldName(concept models.Concept) string {
	return s.fields[concept]
}

func (s *citySchema) DurationMinutes(raw string) (float64, error) {
	return durationMinutes(raw, s.fields[models.ConceptDuration], s.durationDivisor)
}

func (s *citySchema) StartTime(raw string) (models.TripTime, error) {
	return DecomposeTimestamp(raw)
}

func (s *citySchema) UserType(raw string) string {
	return s.userType(raw)
}
