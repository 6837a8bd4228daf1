package classifier

import (
	"runtime"

	"github.com/ogpredict/geofence/geomodel"
)

const (
	minWorkers = 2
	maxWorkers = 8
)

// Config tunes one classification pass.
type Config struct {
	// Workers is the number of contiguous slices the point list is split
	// into. Clamped to [2,8] regardless of the requested value.
	Workers int

	// CancelCheckEvery is the number of points a worker processes between
	// cancellation polls. Zero means every point.
	CancelCheckEvery int
}

// ConfigDefault sizes the pool to the available parallelism, clamped to
// [2,8]. Beyond 8 workers the scan is memory-bound and extra goroutines
// only add concatenation overhead.
func ConfigDefault() Config {
	return Config{
		Workers:          runtime.GOMAXPROCS(0),
		CancelCheckEvery: 64,
	}
}

func (c Config) workers() int {
	return geomodel.Clamp(c.Workers, minWorkers, maxWorkers)
}
