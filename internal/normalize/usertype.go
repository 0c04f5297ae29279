package normalize

import (
	"bikeshare-platform/internal/models"
)

// washingtonRegistered is the only Washington label that maps to Subscriber.
const washingtonRegistered = "Registered"

// UserType normalizes a raw rider category for city.
func UserType(raw string, city models.City) (string, error) {
	s, err := Lookup(city)
	if err != nil {
		return "", err
	}
	return s.UserType(raw), nil
}

func washingtonUserType(raw string) string {
	if raw == washingtonRegistered {
		return string(models.UserTypeSubscriber)
	}
	return string(models.UserTypeCustomer)
}

// NYC and Chicago already use canonical labels; values are not validated.
func passThroughUserType(raw string) string {
	return raw
}
