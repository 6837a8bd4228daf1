package classifier

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/ogpredict/geofence/geomodel"
)

// ErrCanceled is returned when a classification pass observes cancellation.
// No partial results accompany it: completed slice output is discarded.
var ErrCanceled = errors.New("classifier: classification canceled")

// Classify matches every point against the index using the default
// configuration. See ClassifyWithConfig.
func Classify[T any](ctx context.Context, points []geomodel.Sample[T], idx *Index, mode Mode) ([]geomodel.Match[T], error) {
	return ClassifyWithConfig(ctx, points, idx, mode, ConfigDefault())
}

// ClassifyWithConfig splits the point list into contiguous slices and scans
// them in parallel. Each worker reads the shared immutable index and appends
// to its own buffer; buffers are concatenated in slice order, so output
// order follows input order. Unmatched points produce no output row.
//
// Cancellation is cooperative: workers poll the context between batches and
// raise a shared flag so sibling slices stop too. On cancellation the whole
// call returns ErrCanceled and discards everything already computed.
func ClassifyWithConfig[T any](ctx context.Context, points []geomodel.Sample[T], idx *Index, mode Mode, cfg Config) ([]geomodel.Match[T], error) {
	if len(points) == 0 {
		return nil, nil
	}

	workers := cfg.workers()
	if workers > len(points) {
		workers = len(points)
	}
	checkEvery := cfg.CancelCheckEvery
	if checkEvery <= 0 {
		checkEvery = 1
	}

	var canceled atomic.Bool
	outs := make([][]geomodel.Match[T], workers)

	p := pool.New().WithMaxGoroutines(workers)
	for w := 0; w < workers; w++ {
		lo := len(points) * w / workers
		hi := len(points) * (w + 1) / workers
		slice := points[lo:hi]
		out := &outs[w]

		p.Go(func() {
			s := newScanner[T](idx, mode)
			for i, pt := range slice {
				if i%checkEvery == 0 {
					if canceled.Load() {
						return
					}
					if ctx.Err() != nil {
						canceled.Store(true)
						return
					}
				}
				if m, ok := s.match(pt); ok {
					*out = append(*out, m)
				}
			}
		})
	}
	p.Wait()

	if canceled.Load() {
		return nil, ErrCanceled
	}

	total := 0
	for _, o := range outs {
		total += len(o)
	}
	matches := make([]geomodel.Match[T], 0, total)
	for _, o := range outs {
		matches = append(matches, o...)
	}
	return matches, nil
}

// scanner is the per-worker scan state: the candidate buffer is reused
// across points to keep the hot path allocation-free.
type scanner[T any] struct {
	idx        *Index
	mode       Mode
	candidates []geomodel.RegionID
}

func newScanner[T any](idx *Index, mode Mode) *scanner[T] {
	return &scanner[T]{idx: idx, mode: mode, candidates: make([]geomodel.RegionID, 0, 16)}
}

// match runs one point through candidate gathering, the mode filter, and
// containment. Invalid coordinates (NaN) fail every containment test and
// simply produce no match.
func (s *scanner[T]) match(pt geomodel.Sample[T]) (geomodel.Match[T], bool) {
	if s.mode.byRegion {
		// Pre-resolved region: no candidate lookup.
		if int(s.mode.region) >= s.idx.Store.Len() {
			return geomodel.Match[T]{}, false
		}
		return s.test(pt, s.mode.region)
	}

	s.candidates = s.idx.Grid.AppendCandidates(s.candidates[:0], pt.Lat, pt.Lon)
	// Ascending id order makes "first match" mean lowest CSV row, not
	// whichever bucket iterated first.
	slices.Sort(s.candidates)

	for _, id := range s.candidates {
		if !s.mode.admits(id, s.idx.Store.Label(id)) {
			continue
		}
		if m, ok := s.test(pt, id); ok {
			return m, true
		}
	}
	return geomodel.Match[T]{}, false
}

func (s *scanner[T]) test(pt geomodel.Sample[T], id geomodel.RegionID) (geomodel.Match[T], bool) {
	region := s.idx.Store.Region(id)
	if !region.Contains(pt.Lat, pt.Lon) {
		return geomodel.Match[T]{}, false
	}

	m := geomodel.Match[T]{
		Sample: pt,
		Region: id,
		Label:  s.idx.Store.Label(id),
	}
	if s.idx.Names != nil {
		m.Name, m.Type = s.idx.Names.NameType(id)
		cLat, cLon := region.Centroid()
		m.RangeKm = geomodel.HaversineKm(cLat, cLon, pt.Lat, pt.Lon)
		m.BearingDeg = geomodel.BearingDeg(cLat, cLon, pt.Lat, pt.Lon)
	}
	return m, true
}
