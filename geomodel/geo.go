package geomodel

import (
	"math"

	"golang.org/x/exp/constraints"
)

// EarthRadiusKm is the mean Earth radius used for great-circle math.
const EarthRadiusKm = 6371.0

// Kilometers per degree of latitude, and per degree of longitude at the
// equator. Longitude scale shrinks with cos(lat).
const (
	LatKmPerDeg = 110.574
	LonKmPerDeg = 111.320
)

const deg2rad = math.Pi / 180.0

// NormalizeLon maps any longitude into [-180, 180). Idempotent.
func NormalizeLon(lon float64) float64 {
	x := math.Mod(lon+180.0, 360.0)
	if x < 0 {
		x += 360.0
	}
	return x - 180.0
}

// HaversineKm returns the great-circle distance in kilometers between two
// points given in degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := (lat2 - lat1) * deg2rad
	dlon := (lon2 - lon1) * deg2rad
	f1 := lat1 * deg2rad
	f2 := lat2 * deg2rad
	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Sin(dlon/2)*math.Sin(dlon/2)*math.Cos(f1)*math.Cos(f2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDeg returns the forward azimuth from (lat1,lon1) to (lat2,lon2) in
// degrees, normalized into [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	f1 := lat1 * deg2rad
	f2 := lat2 * deg2rad
	dl := (lon2 - lon1) * deg2rad
	y := math.Sin(dl) * math.Cos(f2)
	x := math.Cos(f1)*math.Sin(f2) - math.Sin(f1)*math.Cos(f2)*math.Cos(dl)
	t := math.Atan2(y, x) / deg2rad
	return math.Mod(t+360.0, 360.0)
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
