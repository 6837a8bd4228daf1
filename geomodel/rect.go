package geomodel

import (
	"github.com/paulmach/orb"
)

// Eps makes boundary points inclusive and keeps containment stable under
// floating-point jitter at tile edges.
const Eps = 1e-12

// Rect is an axis-aligned tile in degrees. LatMin <= LatMax always holds;
// the longitude interval is allowed to wrap: after normalization a
// LonMin > LonMax rectangle covers [LonMin,180) ∪ [-180,LonMax]. That is a
// first-class state, not an error.
type Rect struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// Wraps reports whether the rectangle crosses the antimeridian.
func (r Rect) Wraps() bool {
	return NormalizeLon(r.LonMin) > NormalizeLon(r.LonMax)
}

// Contains tests point membership in constant time. The latitude interval
// is tested first; longitudes are normalized into [-180,180) and a wrapped
// interval is tested as the union of its two spans. All comparisons are
// Eps-inclusive.
func (r Rect) Contains(lat, lon float64) bool {
	if lat < r.LatMin-Eps || lat > r.LatMax+Eps {
		return false
	}
	a := NormalizeLon(r.LonMin)
	b := NormalizeLon(r.LonMax)
	l := NormalizeLon(lon)
	if a <= b {
		return l >= a-Eps && l <= b+Eps
	}
	return l >= a-Eps || l <= b+Eps
}

// Center returns the rectangle midpoint. For wrapped rectangles the naive
// longitude midpoint lands on the far side of the globe; callers that load
// tiles from CSV never produce wrapped POI rectangles (bounds are swapped
// at append time), so the midpoint is kept simple.
func (r Rect) Center() (lat, lon float64) {
	return 0.5 * (r.LatMin + r.LatMax), 0.5 * (r.LonMin + r.LonMax)
}

// Corners returns the 4-corner ring SW, SE, NE, NW. Points follow the orb
// convention: X is longitude, Y is latitude.
func (r Rect) Corners() orb.Ring {
	return orb.Ring{
		{r.LonMin, r.LatMin},
		{r.LonMax, r.LatMin},
		{r.LonMax, r.LatMax},
		{r.LonMin, r.LatMax},
	}
}

// RectFromCorners computes the bounding rectangle of a corner ring.
func RectFromCorners(ring orb.Ring) Rect {
	r := Rect{LatMin: 90, LatMax: -90, LonMin: 180, LonMax: -180}
	for _, p := range ring {
		if p.Y() < r.LatMin {
			r.LatMin = p.Y()
		}
		if p.Y() > r.LatMax {
			r.LatMax = p.Y()
		}
		if p.X() < r.LonMin {
			r.LonMin = p.X()
		}
		if p.X() > r.LonMax {
			r.LonMax = p.X()
		}
	}
	return r
}

// RectFromCenter builds a rectangle from a center point and a width/height
// in degrees (territory CSV schema).
func RectFromCenter(latC, lonC, w, h float64) Rect {
	return Rect{
		LatMin: latC - h/2,
		LatMax: latC + h/2,
		LonMin: lonC - w/2,
		LonMax: lonC + w/2,
	}
}
