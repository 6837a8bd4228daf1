package geomodel

import "time"

// Sample is one unit of the classification workload: a time-tagged
// sub-satellite point plus an opaque caller payload. The engine only reads
// samples, never mutates them.
type Sample[T any] struct {
	Time time.Time
	Lat  float64
	Lon  float64
	Data T
}

// Match is the classification result for one sample. Label carries the
// territory name (empty means unclassified land). Name/Type and the derived
// range/bearing are filled only when the index carries a POI name registry.
type Match[T any] struct {
	Sample Sample[T]
	Region RegionID
	Label  string

	Name       string
	Type       string
	RangeKm    float64
	BearingDeg float64
}
