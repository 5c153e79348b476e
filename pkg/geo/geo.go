// Package geo provides coordinate types and great-circle distance math.
package geo

import "math"

// Point represents a geographic coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Distance calculates the Haversine distance between two points in kilometers.
func Distance(p1, p2 Point) float64 {
	const R = 6371 // Earth radius in kilometers
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLng := (p2.Lng - p1.Lng) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// Valid reports whether the point's coordinates are finite numbers.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}
