package geocode

import "errors"

var (
	// ErrNotFound indicates the service returned no match for the postal code.
	ErrNotFound = errors.New("geocode: no results for postal code")
	// ErrInvalidCoordinates indicates the service returned a match whose
	// latitude/longitude could not be parsed as numbers.
	ErrInvalidCoordinates = errors.New("geocode: invalid coordinates in response")
)
