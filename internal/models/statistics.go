package models

import (
	"encoding/json"
	"math"
	"time"
)

// Average is a running mean. An empty average is undefined rather than zero.
type Average struct {
	Sum   float64
	Count int
}

// Add folds one observation into the mean.
func (a *Average) Add(v float64) {
	a.Sum += v
	a.Count++
}

// Value returns the mean or ErrDivideByZero for an empty group.
func (a Average) Value() (float64, error) {
	if a.Count == 0 {
		return math.NaN(), ErrDivideByZero
	}
	return a.Sum / float64(a.Count), nil
}

// Defined reports whether the mean has at least one observation.
func (a Average) Defined() bool {
	return a.Count > 0
}

// MarshalJSON renders an undefined mean as null instead of a NaN the encoder rejects.
func (a Average) MarshalJSON() ([]byte, error) {
	out := struct {
		Mean    *float64 `json:"mean"`
		Count   int      `json:"count"`
		Defined bool     `json:"defined"`
	}{Count: a.Count, Defined: a.Defined()}
	if v, err := a.Value(); err == nil {
		out.Mean = &v
	}
	return json.Marshal(out)
}

// UserTypeCounts is the result of counting trips by rider category.
type UserTypeCounts struct {
	Subscribers int `json:"subscribers"`
	Customers   int `json:"customers"`
	Total       int `json:"total"`
}

// DurationSplit counts trips on either side of a threshold.
type DurationSplit struct {
	ThresholdMinutes float64 `json:"threshold_minutes"`
	AtOrBelow        int     `json:"at_or_below"`
	Above            int     `json:"above"`
	Overall          Average `json:"overall"`
}

// UserTypeDurations holds mean trip duration per rider category.
type UserTypeDurations struct {
	Subscriber Average `json:"subscriber"`
	Customer   Average `json:"customer"`
}

// CityStatistics is the full descriptive summary for one city.
type CityStatistics struct {
	City         City              `json:"city"`
	Counts       UserTypeCounts    `json:"counts"`
	Durations    DurationSplit     `json:"durations"`
	ByUserType   UserTypeDurations `json:"by_user_type"`
	CalculatedAt time.Time         `json:"calculated_at"`
}

// Bucket is one bar of a histogram.
type Bucket struct {
	Key   int    `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Histogram is an ordered set of buckets for one city and rider category.
type Histogram struct {
	City      City     `json:"city"`
	Dimension string   `json:"dimension"`
	UserType  UserType `json:"user_type"`
	Buckets   []Bucket `json:"buckets"`
}

// DurationBin is one fixed-width duration range [Lower, Upper).
type DurationBin struct {
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Midpoint float64 `json:"midpoint"`
	Count    int     `json:"count"`
}

// DurationHistogram bins trip durations below a cap.
type DurationHistogram struct {
	City       City          `json:"city"`
	UserType   UserType      `json:"user_type"`
	CapMinutes float64       `json:"cap_minutes"`
	Bins       []DurationBin `json:"bins"`
	Excluded   int           `json:"excluded"`
}
