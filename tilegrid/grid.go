// Package tilegrid implements a uniform equirectangular bucket index over
// the sphere: 1°×1° cells, each holding the ids of every region whose
// bounding rectangle overlaps it. The grid is built once per tile-store
// load and is read-only during queries, so lookups need no locking.
package tilegrid

import (
	"math"

	"github.com/ogpredict/geofence/geomodel"
)

// CellDeg is the grid cell size in degrees.
const CellDeg = 1.0

const (
	maxRow = int32(180.0/CellDeg) - 1
	maxCol = int32(360.0/CellDeg) - 1
)

// CellKey addresses one grid cell: rows by latitude, columns by longitude.
type CellKey struct {
	Row, Col int32
}

// CellOf maps a point to its grid cell. Latitude is clamped to [-90,90],
// longitude normalized to [-180,180); the resulting indices are clamped to
// the grid bounds so floating-point error at the poles or the seam can
// never produce an out-of-range key.
func CellOf(lat, lon float64) CellKey {
	lat = geomodel.Clamp(lat, -90.0, 90.0)
	l := geomodel.NormalizeLon(lon)
	row := int32(math.Floor((lat + 90.0) / CellDeg))
	col := int32(math.Floor((l + 180.0) / CellDeg))
	return CellKey{
		Row: geomodel.Clamp(row, 0, maxRow),
		Col: geomodel.Clamp(col, 0, maxCol),
	}
}

// Grid maps cells to region ids in insertion order (CSV row order).
type Grid struct {
	cells map[CellKey][]geomodel.RegionID
}

// New returns an empty grid.
func New() *Grid {
	return &Grid{cells: make(map[CellKey][]geomodel.RegionID)}
}

// Build indexes every region of a freshly loaded store. Region ids are the
// slice positions.
func Build(regions []geomodel.Region) *Grid {
	g := New()
	for id, r := range regions {
		g.Insert(geomodel.RegionID(id), r.Rect)
	}
	return g
}

// Reset discards all buckets. Used before a wholesale rebuild; no stale
// bucket survives.
func (g *Grid) Reset() {
	g.cells = make(map[CellKey][]geomodel.RegionID)
}

// Len returns the number of non-empty cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Bucket returns the ids indexed in one cell. Callers must not mutate the
// returned slice.
func (g *Grid) Bucket(k CellKey) []geomodel.RegionID {
	return g.cells[k]
}

// Insert indexes a rectangle into every cell it overlaps. A rectangle that
// wraps the antimeridian is split into [a,180) and [-180,b] spans first:
// cell columns come from floor division and cannot represent a wrapped
// interval directly.
func (g *Grid) Insert(id geomodel.RegionID, r geomodel.Rect) {
	a := geomodel.NormalizeLon(r.LonMin)
	b := geomodel.NormalizeLon(r.LonMax)
	if a <= b {
		g.insertSpan(id, r.LatMin, r.LatMax, a, b)
		return
	}
	g.insertSpan(id, r.LatMin, r.LatMax, a, 180.0-1e-9)
	g.insertSpan(id, r.LatMin, r.LatMax, -180.0, b)
}

func (g *Grid) insertSpan(id geomodel.RegionID, latMin, latMax, lonMin, lonMax float64) {
	lo := CellOf(latMin, lonMin)
	hi := CellOf(latMax, lonMax)
	for row := lo.Row; row <= hi.Row; row++ {
		for col := lo.Col; col <= hi.Col; col++ {
			k := CellKey{Row: row, Col: col}
			g.cells[k] = append(g.cells[k], id)
		}
	}
}

// AppendCandidates appends to dst the deduplicated ids indexed in the
// point's cell and its 8 neighbors. The 3×3 probe guarantees no false
// negative for rectangles extending from an adjacent cell; rectangles
// larger than one cell are present in every overlapped cell anyway. dst is
// reused by hot-path callers to avoid per-point allocation.
func (g *Grid) AppendCandidates(dst []geomodel.RegionID, lat, lon float64) []geomodel.RegionID {
	c := CellOf(lat, lon)
	for dr := int32(-1); dr <= 1; dr++ {
		for dc := int32(-1); dc <= 1; dc++ {
			bucket := g.cells[CellKey{Row: c.Row + dr, Col: c.Col + dc}]
			for _, id := range bucket {
				if !containsID(dst, id) {
					dst = append(dst, id)
				}
			}
		}
	}
	return dst
}

func containsID(ids []geomodel.RegionID, id geomodel.RegionID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
