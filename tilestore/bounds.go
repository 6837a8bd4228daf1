package tilestore

import (
	"fmt"
	"math"
	"os"

	"github.com/ogpredict/geofence/geomodel"
)

// ValidationError rejects a POI before anything is written, naming the
// offending constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tilestore: invalid %s: %s", e.Field, e.Reason)
}

// appendHeader is the column contract for user-added POI rows.
const appendHeader = "Name,Type,Tile_km,Center_Lat,Center_Lon,Lat_min,Lat_max,Lon_min,Lon_max\n"

// ComputeBounds converts a square POI tile (center + edge length in km) to
// degree bounds. Inputs must be finite, the tile size positive, the center
// within latitude/longitude range. Latitude bounds are clamped at the
// poles; longitude bounds are normalized, and swapped if normalization
// crossed the seam so the stored row keeps min <= max.
func ComputeBounds(centerLat, centerLon, tileKm float64) (geomodel.Rect, error) {
	switch {
	case math.IsNaN(centerLat) || math.IsInf(centerLat, 0):
		return geomodel.Rect{}, &ValidationError{Field: "center_lat", Reason: "must be finite"}
	case math.IsNaN(centerLon) || math.IsInf(centerLon, 0):
		return geomodel.Rect{}, &ValidationError{Field: "center_lon", Reason: "must be finite"}
	case math.IsNaN(tileKm) || math.IsInf(tileKm, 0):
		return geomodel.Rect{}, &ValidationError{Field: "tile_km", Reason: "must be finite"}
	case tileKm <= 0:
		return geomodel.Rect{}, &ValidationError{Field: "tile_km", Reason: "must be positive"}
	case centerLat < -90 || centerLat > 90:
		return geomodel.Rect{}, &ValidationError{Field: "center_lat", Reason: "must be in [-90,90]"}
	case centerLon < -180 || centerLon > 180:
		return geomodel.Rect{}, &ValidationError{Field: "center_lon", Reason: "must be in [-180,180]"}
	}

	r := rectFromCenterKm(centerLat, centerLon, tileKm)
	r.LatMin = math.Max(r.LatMin, -90)
	r.LatMax = math.Min(r.LatMax, 90)
	r.LonMin = geomodel.NormalizeLon(r.LonMin)
	r.LonMax = geomodel.NormalizeLon(r.LonMax)
	if r.LonMin > r.LonMax {
		r.LonMin, r.LonMax = r.LonMax, r.LonMin
	}
	return r, nil
}

// AppendToCSV validates and appends one user-added POI row, writing the
// header first if the file is currently empty. Returns the region built
// from the computed bounds so callers can index it without a reload.
func AppendToCSV(path, name, typ string, tileKm, centerLat, centerLon float64) (geomodel.Region, error) {
	if name == "" {
		return geomodel.Region{}, &ValidationError{Field: "name", Reason: "is required"}
	}

	rect, err := ComputeBounds(centerLat, centerLon, tileKm)
	if err != nil {
		return geomodel.Region{}, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return geomodel.Region{}, fmt.Errorf("tilestore: open %s for append: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return geomodel.Region{}, fmt.Errorf("tilestore: stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		if _, err := f.WriteString(appendHeader); err != nil {
			return geomodel.Region{}, fmt.Errorf("tilestore: write header: %w", err)
		}
	}

	_, err = fmt.Fprintf(f, "%s,%s,%.10f,%.10f,%.10f,%.10f,%.10f,%.10f,%.10f\n",
		name, typ, tileKm, centerLat, centerLon,
		rect.LatMin, rect.LatMax, rect.LonMin, rect.LonMax)
	if err != nil {
		return geomodel.Region{}, fmt.Errorf("tilestore: append row: %w", err)
	}

	return geomodel.NewRegion(rect), nil
}
