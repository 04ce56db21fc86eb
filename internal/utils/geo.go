package utils

import "math"

const earthRadiusMeters = 6371000.0

// metersPerDegreeLat is the approximate length of one degree of latitude.
const metersPerDegreeLat = 111000.0

// Haversine returns the great-circle distance in meters between two coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// CoordinateBounds is an axis-aligned lat/lon box.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoundsForRadius returns the box enclosing a circle of radius meters around (lat, lon).
// 1 degree latitude ≈ 111km, 1 degree longitude shrinks with cos(lat).
func BoundsForRadius(lat, lon, radius float64) CoordinateBounds {
	latDelta := radius / metersPerDegreeLat
	lonDegree := metersPerDegreeLat * math.Cos(toRadians(lat))
	lonDelta := 180.0
	if lonDegree > 1e-9 {
		lonDelta = radius / lonDegree
	}

	return CoordinateBounds{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLon: lon - lonDelta,
		MaxLon: lon + lonDelta,
	}
}

// Contains reports whether the point lies inside the bounds.
func (b CoordinateBounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// WalkMinutes converts a walking distance to whole minutes, rounding up.
func WalkMinutes(distanceMeters, metersPerMinute float64) int {
	if distanceMeters <= 0 || metersPerMinute <= 0 {
		return 0
	}
	return int(math.Ceil(distanceMeters / metersPerMinute))
}
