package models

import (
	"fmt"
)

// City identifies a source schema. The set is closed: every value must have a
// matching schema variant in the normalize package.
type City string

const (
	CityNYC        City = "NYC"
	CityChicago    City = "Chicago"
	CityWashington City = "Washington"
)

// Cities lists every supported city in a stable order.
var Cities = [...]City{CityNYC, CityChicago, CityWashington}

// ParseCity resolves a city name case-sensitively.
func ParseCity(name string) (City, error) {
	for _, c := range Cities {
		if string(c) == name {
			return c, nil
		}
	}
	return "", &SchemaError{City: City(name), Message: fmt.Sprintf("unknown city %q", name)}
}

// Concept is a semantic field that every source schema carries under its own name.
type Concept int

const (
	ConceptDuration Concept = iota
	ConceptStartTime
	ConceptUserType
)

func (c Concept) String() string {
	switch c {
	case ConceptDuration:
		return "duration"
	case ConceptStartTime:
		return "start_time"
	case ConceptUserType:
		return "user_type"
	default:
		return fmt.Sprintf("concept(%d)", int(c))
	}
}

// UserType is the canonical rider category.
type UserType string

const (
	UserTypeSubscriber UserType = "Subscriber"
	UserTypeCustomer   UserType = "Customer"
)

// ParseUserType accepts only the two canonical labels.
func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case UserTypeSubscriber, UserTypeCustomer:
		return UserType(s), nil
	}
	return "", &ValidationError{Field: "user_type", Value: s, Message: "user_type must be Subscriber or Customer"}
}

// RawTripRecord is one row of a city's source file keyed by header name.
// Produced by the record source and consumed once by the condenser.
type RawTripRecord map[string]string

// CanonicalTrip is the normalized trip shared across cities.
// DayOfWeek is always derived from the same date that produced Month and Hour.
type CanonicalTrip struct {
	DurationMinutes float64 `json:"duration"`
	Month           int     `json:"month"`
	Hour            int     `json:"hour"`
	DayOfWeek       string  `json:"day_of_week"`
	UserType        string  `json:"user_type"`
}

// CanonicalHeader is the fixed column order of condensed summary files.
var CanonicalHeader = [...]string{"duration", "month", "hour", "day_of_week", "user_type"}

// TripTime is the decomposition of a start timestamp.
type TripTime struct {
	Month     int
	Hour      int
	DayOfWeek string
}
