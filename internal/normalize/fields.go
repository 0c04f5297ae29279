package normalize

import (
	"bikeshare-platform/internal/models"
)

// FieldName maps a city and concept to the column name of that city's files.
func FieldName(city models.City, concept models.Concept) (string, error) {
	s, err := Lookup(city)
	if err != nil {
		return "", err
	}
	name := s.FieldName(concept)
	if name == "" {
		return "", &models.SchemaError{City: city, Message: "no field mapped for " + concept.String()}
	}
	return name, nil
}

// Field reads the value of concept from a raw record.
// A missing column is a SchemaError; an empty value is returned as is.
func Field(raw models.RawTripRecord, schema Schema, concept models.Concept) (string, error) {
	name := schema.FieldName(concept)
	if name == "" {
		return "", &models.SchemaError{City: schema.City(), Message: "no field mapped for " + concept.String()}
	}
	value, ok := raw[name]
	if !ok {
		return "", &models.SchemaError{City: schema.City(), Field: name}
	}
	return value, nil
}
