package geomodel

import (
	"github.com/paulmach/orb"
)

// PolygonContains is the even-odd ray-casting test: a horizontal ray at the
// point's latitude is crossed against each polygon edge. O(len(ring)).
//
// This is the portable fallback for shapes that are not representable on
// the rectangle fast path. Unlike Rect.Contains it is not Eps-inclusive, so
// points exactly on a boundary may be reported outside; that discrepancy is
// deliberate (see the package tests).
func PolygonContains(ring orb.Ring, lat, lon float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X(), ring[i].Y()
		xj, yj := ring[j].X(), ring[j].Y()
		if (yi > lat) != (yj > lat) {
			xInt := xi + (lat-yi)*(xj-xi)/(yj-yi)
			if lon < xInt {
				inside = !inside
			}
		}
	}
	return inside
}
