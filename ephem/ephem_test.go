package ephem

import (
	"context"
	"testing"
	"time"

	"github.com/ogpredict/geofence/geomodel"
)

func TestCollect(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fn := func(tm time.Time) (float64, float64) {
		s := tm.Sub(start).Seconds()
		return s, -s
	}

	samples, err := Collect(context.Background(), fn, start, 10*time.Second, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples (end inclusive), got %d", len(samples))
	}
	if samples[0].Data != "2026/03/01 12:00:00" {
		t.Fatalf("unexpected timestamp tag %q", samples[0].Data)
	}
	if samples[2].Lat != 10 || samples[2].Lon != -10 {
		t.Fatalf("unexpected last subpoint (%v,%v)", samples[2].Lat, samples[2].Lon)
	}
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(time.Time) (float64, float64) { return 0, 0 }
	_, err := Collect(ctx, fn, time.Now(), time.Hour, time.Second)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestSplitGaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(sec int) geomodel.Sample[int] {
		return geomodel.Sample[int]{Time: base.Add(time.Duration(sec) * time.Second)}
	}

	samples := []geomodel.Sample[int]{
		at(0), at(10), at(20),
		at(120), at(130),
		at(300),
	}
	runs := SplitGaps(samples, 30*time.Second)
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if len(runs[0]) != 3 || len(runs[1]) != 2 || len(runs[2]) != 1 {
		t.Fatalf("unexpected run sizes %d/%d/%d", len(runs[0]), len(runs[1]), len(runs[2]))
	}

	// A gap of exactly the threshold does not split.
	runs = SplitGaps([]geomodel.Sample[int]{at(0), at(30)}, 30*time.Second)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run at exact threshold, got %d", len(runs))
	}

	if got := SplitGaps[int](nil, time.Second); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
