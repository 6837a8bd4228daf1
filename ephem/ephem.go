// Package ephem collects time-stepped ground-track samples from an opaque
// subpoint source and prepares them for classification.
package ephem

import (
	"context"
	"time"

	"github.com/ogpredict/geofence/geomodel"
)

// TimeLayout is the timestamp format carried in sample payloads.
const TimeLayout = "2006/01/02 15:04:05"

// SubpointFunc returns the sub-satellite latitude and longitude at a given
// instant. Propagation itself is external; the collector only samples it.
type SubpointFunc func(t time.Time) (lat, lon float64)

// Collect samples fn over [start, start+duration] at a fixed step, tagging
// each sample with its UTC timestamp string. The end instant is included
// when the step lands on it. Returns ctx.Err() if canceled mid-collection.
func Collect(ctx context.Context, fn SubpointFunc, start time.Time, duration, step time.Duration) ([]geomodel.Sample[string], error) {
	if step <= 0 {
		step = time.Second
	}

	end := start.Add(duration)
	out := make([]geomodel.Sample[string], 0, int(duration/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lat, lon := fn(t)
		out = append(out, geomodel.Sample[string]{
			Time: t,
			Lat:  lat,
			Lon:  lon,
			Data: t.UTC().Format(TimeLayout),
		})
	}
	return out, nil
}

// SplitGaps partitions samples into runs separated by time gaps larger than
// threshold. Matched subsets of a collected track are discontinuous where
// the track leaves a region; the split restores per-pass grouping.
func SplitGaps[T any](samples []geomodel.Sample[T], threshold time.Duration) [][]geomodel.Sample[T] {
	if len(samples) == 0 {
		return nil
	}

	var runs [][]geomodel.Sample[T]
	startIdx := 0
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Sub(samples[i-1].Time) > threshold {
			runs = append(runs, samples[startIdx:i])
			startIdx = i
		}
	}
	return append(runs, samples[startIdx:])
}
