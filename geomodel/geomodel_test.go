package geomodel_test

import (
	"math"
	"testing"

	"github.com/ogpredict/geofence/geomodel"
)

func TestNormalizeLonIdempotent(t *testing.T) {
	for _, lon := range []float64{-720, -540, -180, -179.999, -1, 0, 1, 179.999, 180, 359, 540, 123456.789} {
		once := geomodel.NormalizeLon(lon)
		twice := geomodel.NormalizeLon(once)
		if once != twice {
			t.Fatalf("normalize(%v) not idempotent: %v != %v", lon, once, twice)
		}
		if once < -180 || once >= 180 {
			t.Fatalf("normalize(%v) = %v out of [-180,180)", lon, once)
		}
	}
}

func TestNormalizeLonSeam(t *testing.T) {
	if got := geomodel.NormalizeLon(180); got != -180 {
		t.Fatalf("normalize(180) = %v, want -180", got)
	}
	if got := geomodel.NormalizeLon(-180); got != -180 {
		t.Fatalf("normalize(-180) = %v, want -180", got)
	}
}

func TestHaversineZero(t *testing.T) {
	if d := geomodel.HaversineKm(10, 20, 10, 20); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestHaversineEquatorDegree(t *testing.T) {
	// one degree of longitude at the equator
	d := geomodel.HaversineKm(0, 0, 0, 1)
	want := geomodel.EarthRadiusKm * math.Pi / 180
	if math.Abs(d-want) > 1e-9 {
		t.Fatalf("1° equator arc = %v km, want %v", d, want)
	}
}

func TestBearingCardinals(t *testing.T) {
	cases := []struct {
		lat2, lon2 float64
		want       float64
	}{
		{1, 0, 0},    // due north
		{0, 1, 90},   // due east
		{-1, 0, 180}, // due south
		{0, -1, 270}, // due west
	}
	for _, c := range cases {
		got := geomodel.BearingDeg(0, 0, c.lat2, c.lon2)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("bearing to (%v,%v) = %v, want %v", c.lat2, c.lon2, got, c.want)
		}
	}
}

func TestBearingRange(t *testing.T) {
	for lat := -80.0; lat <= 80; lat += 17 {
		for lon := -170.0; lon <= 170; lon += 23 {
			b := geomodel.BearingDeg(10, 20, lat, lon)
			if b < 0 || b >= 360 {
				t.Fatalf("bearing (10,20)->(%v,%v) = %v out of [0,360)", lat, lon, b)
			}
		}
	}
}
