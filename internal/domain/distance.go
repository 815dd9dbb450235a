package domain

import "math"

// Mean Earth radius (IUGG) used by the haversine formula.
const EarthRadiusKm = 6371.0088

// Average speed for urban mixed traffic, used for local ETAs.
const DefaultAvgSpeedKmh = 30.0

// Distance returns the great-circle distance in kilometers between a and b.
// Invalid coordinates produce a MetricError instead of a NaN distance.
func Distance(a, b Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, &MetricError{Coordinate: a, Reason: err.Error()}
	}
	if err := b.Validate(); err != nil {
		return 0, &MetricError{Coordinate: b, Reason: err.Error()}
	}
	if a.Equal(b) {
		return 0, nil
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h)), nil
}

// ETA converts a distance into travel minutes at avgSpeedKmh.
// A non-positive speed falls back to DefaultAvgSpeedKmh.
func ETA(km, avgSpeedKmh float64) float64 {
	if avgSpeedKmh <= 0 || math.IsNaN(avgSpeedKmh) {
		avgSpeedKmh = DefaultAvgSpeedKmh
	}
	return km / avgSpeedKmh * 60
}
