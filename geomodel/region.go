package geomodel

import (
	"github.com/paulmach/orb"
)

// RegionID is a dense handle into a tile store's region list. IDs are
// assigned in CSV row order, which makes ascending ID order the first-match
// tie-break between overlapping regions.
type RegionID int32

// Region is one CSV-derived tile: its rectangle bounds plus the explicit
// 4-corner ring kept for legacy consumers and the polygon fallback path.
type Region struct {
	Rect    Rect
	Corners orb.Ring

	// IsRect marks regions whose Rect is exact, enabling the constant-time
	// containment path. Regions built from corner-only input fall back to
	// ray casting behind a bounding-box prefilter.
	IsRect bool
}

// NewRegion builds a rectangular region, deriving the corner ring.
func NewRegion(r Rect) Region {
	return Region{Rect: r, Corners: r.Corners(), IsRect: true}
}

// RegionFromCorners builds a region from an explicit ring (legacy corner
// columns); Rect holds the bounding box, containment uses ray casting.
func RegionFromCorners(ring orb.Ring) Region {
	return Region{Rect: RectFromCorners(ring), Corners: ring}
}

// Contains reports whether the point lies in the region. Rectangular
// regions use the Eps-inclusive interval test; corner-only regions use the
// strict even-odd ray cast after a cheap bounding-box prefilter. The two
// paths intentionally disagree at exact boundary values.
func (g Region) Contains(lat, lon float64) bool {
	if g.IsRect {
		return g.Rect.Contains(lat, lon)
	}
	if !g.Rect.Contains(lat, lon) {
		return false
	}
	return PolygonContains(g.Corners, lat, lon)
}

// Centroid returns the region's reference point: the rectangle midpoint
// when exact bounds are known, otherwise the average of corners 0 and 2
// (the SW/NE diagonal of the stored ring).
func (g Region) Centroid() (lat, lon float64) {
	if g.IsRect {
		return g.Rect.Center()
	}
	return (g.Corners[0].Y() + g.Corners[2].Y()) * 0.5,
		(g.Corners[0].X() + g.Corners[2].X()) * 0.5
}
