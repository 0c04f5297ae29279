package models

import "fmt"

// WeekdayNames is indexed Monday = 0 .. Sunday = 6.
var WeekdayNames = [7]string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// MonthNames is indexed January = 0.
var MonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// WeekdayName returns the label for a Monday-first weekday index.
func WeekdayName(weekday int) (string, error) {
	if weekday < 0 || weekday > 6 {
		return "", fmt.Errorf("weekday index out of range: %d", weekday)
	}
	return WeekdayNames[weekday], nil
}

// WeekdayIndex is the inverse of WeekdayName.
func WeekdayIndex(name string) (int, bool) {
	for i, n := range WeekdayNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// MonthName returns the full name of month 1-12.
func MonthName(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month out of range: %d", month)
	}
	return MonthNames[month-1], nil
}

// MonthAbbrev returns the three-letter label used for histogram buckets.
func MonthAbbrev(month int) (string, error) {
	name, err := MonthName(month)
	if err != nil {
		return "", err
	}
	return name[:3], nil
}
