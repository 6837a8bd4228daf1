package tilegrid_test

import (
	"math/rand"
	"testing"

	"github.com/tidwall/qtree"

	"github.com/ogpredict/geofence/geomodel"
	"github.com/ogpredict/geofence/tilegrid"
)

func TestCellOf(t *testing.T) {
	cases := []struct {
		lat, lon float64
		row, col int32
	}{
		{-90, -180, 0, 0},
		{0, 0, 90, 180},
		{89.999, 179.999, 179, 359},
	}
	for _, c := range cases {
		k := tilegrid.CellOf(c.lat, c.lon)
		if k.Row != c.row || k.Col != c.col {
			t.Fatalf("CellOf(%v,%v) = %+v, want {%d %d}", c.lat, c.lon, k, c.row, c.col)
		}
	}
	// poles and seam clamp instead of overflowing
	k := tilegrid.CellOf(90, 180)
	if k.Row != 179 || k.Col != 0 {
		t.Fatalf("CellOf(90,180) = %+v, want {179 0}", k)
	}
	k = tilegrid.CellOf(-91, -181)
	if k.Row != 0 {
		t.Fatalf("CellOf(-91,·) row = %d, want 0", k.Row)
	}
}

func TestInsertDatelineSplit(t *testing.T) {
	g := tilegrid.New()
	g.Insert(0, geomodel.Rect{LatMin: -0.5, LatMax: 0.5, LonMin: 178.5, LonMax: -178.5})

	east := tilegrid.CellOf(0, 179)
	west := tilegrid.CellOf(0, -179)
	if len(g.Bucket(east)) == 0 {
		t.Fatal("wrapped rect missing from east-side cell")
	}
	if len(g.Bucket(west)) == 0 {
		t.Fatal("wrapped rect missing from west-side cell")
	}
	if len(g.Bucket(tilegrid.CellOf(0, 0))) != 0 {
		t.Fatal("wrapped rect must not appear near lon 0")
	}
}

func TestCandidatesNeighborhood(t *testing.T) {
	g := tilegrid.New()
	// rect entirely inside one cell
	g.Insert(7, geomodel.Rect{LatMin: 10.2, LatMax: 10.8, LonMin: 20.2, LonMax: 20.8})

	// query from the adjacent cell still sees it through the 3×3 probe
	ids := g.AppendCandidates(nil, 11.1, 20.5)
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("neighbor probe candidates = %v, want [7]", ids)
	}
	// two cells away it does not
	ids = g.AppendCandidates(nil, 13.5, 20.5)
	if len(ids) != 0 {
		t.Fatalf("distant probe candidates = %v, want none", ids)
	}
}

func TestCandidatesDeduplicated(t *testing.T) {
	g := tilegrid.New()
	// rect spanning several cells appears in each, but is reported once
	g.Insert(3, geomodel.Rect{LatMin: 0, LatMax: 5, LonMin: 0, LonMax: 5})
	ids := g.AppendCandidates(nil, 2.5, 2.5)
	if len(ids) != 1 {
		t.Fatalf("candidates = %v, want exactly one entry", ids)
	}
}

func TestReset(t *testing.T) {
	g := tilegrid.New()
	g.Insert(1, geomodel.Rect{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1})
	if g.Len() == 0 {
		t.Fatal("expected non-empty grid")
	}
	g.Reset()
	if g.Len() != 0 {
		t.Fatal("reset left stale buckets")
	}
	if ids := g.AppendCandidates(nil, 0.5, 0.5); len(ids) != 0 {
		t.Fatalf("reset grid returned candidates %v", ids)
	}
}

// Grid completeness: for random non-wrapping rectangles and random query
// points, the grid-accelerated scan must agree with a brute-force scan over
// all regions, and with an independent qtree oracle.
func TestGridCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	const nRects = 1000
	const nPoints = 10000

	regions := make([]geomodel.Region, 0, nRects)
	var qt qtree.QTree
	for i := 0; i < nRects; i++ {
		latMin := rng.Float64()*170 - 85
		lonMin := rng.Float64()*340 - 175
		r := geomodel.Rect{
			LatMin: latMin,
			LatMax: latMin + rng.Float64()*4,
			LonMin: lonMin,
			LonMax: lonMin + rng.Float64()*4,
		}
		regions = append(regions, geomodel.NewRegion(r))
		qt.Insert([2]float64{r.LonMin, r.LatMin}, [2]float64{r.LonMax, r.LatMax}, uint32(i))
	}
	g := tilegrid.Build(regions)

	var cands []geomodel.RegionID
	for i := 0; i < nPoints; i++ {
		lat := rng.Float64()*180 - 90
		lon := rng.Float64()*360 - 180

		brute := map[geomodel.RegionID]bool{}
		for id, reg := range regions {
			if reg.Rect.Contains(lat, lon) {
				brute[geomodel.RegionID(id)] = true
			}
		}

		indexed := map[geomodel.RegionID]bool{}
		cands = g.AppendCandidates(cands[:0], lat, lon)
		for _, id := range cands {
			if regions[id].Rect.Contains(lat, lon) {
				indexed[id] = true
			}
		}

		if len(brute) != len(indexed) {
			t.Fatalf("point (%v,%v): brute %d hits, grid %d hits", lat, lon, len(brute), len(indexed))
		}
		for id := range brute {
			if !indexed[id] {
				t.Fatalf("point (%v,%v): grid missed region %d", lat, lon, id)
			}
		}

		// qtree bbox oracle: every exact hit must be inside a reported bbox
		oracle := map[uint32]bool{}
		qt.Search([2]float64{lon, lat}, [2]float64{lon, lat}, func(_, _ [2]float64, data interface{}) bool {
			oracle[data.(uint32)] = true
			return true
		})
		for id := range brute {
			r := regions[id].Rect
			// Eps-inclusive hits exactly on a bbox edge may be excluded by
			// the qtree's strict comparison; skip those
			if lat > r.LatMin && lat < r.LatMax && lon > r.LonMin && lon < r.LonMax {
				if !oracle[uint32(id)] {
					t.Fatalf("point (%v,%v): qtree oracle missed region %d", lat, lon, id)
				}
			}
		}
	}
}
