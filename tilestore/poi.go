package tilestore

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/ogpredict/geofence/geomodel"
)

// LoadPOI reads the POI tile set. Header column names are matched
// case-insensitively: explicit Lat_min/Lat_max/Lon_min/Lon_max bounds are
// preferred; Center_Lat/Center_Lon/Tile_km is the legacy fallback, with the
// kilometer half-size converted to degrees at the tile's latitude.
func LoadPOI(path string) (*Store, error) {
	f, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readPOI(f)
}

type poiColumns struct {
	latMin, latMax, lonMin, lonMax int
	centerLat, centerLon, tileKm   int
}

func (c poiColumns) hasBounds() bool {
	return c.latMin >= 0 && c.latMax >= 0 && c.lonMin >= 0 && c.lonMax >= 0
}

func (c poiColumns) hasCenter() bool {
	return c.centerLat >= 0 && c.centerLon >= 0 && c.tileKm >= 0
}

func resolvePOIColumns(header []string) poiColumns {
	c := poiColumns{latMin: -1, latMax: -1, lonMin: -1, lonMax: -1, centerLat: -1, centerLon: -1, tileKm: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat_min":
			c.latMin = i
		case "lat_max":
			c.latMax = i
		case "lon_min":
			c.lonMin = i
		case "lon_max":
			c.lonMax = i
		case "center_lat":
			c.centerLat = i
		case "center_lon":
			c.centerLon = i
		case "tile_km":
			c.tileKm = i
		}
	}
	return c
}

func readPOI(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, err
	}
	cols := resolvePOIColumns(header)

	store := &Store{}
	row := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			slog.Debug("skipping unparsable poi row", "row", row, "error", err)
			continue
		}

		switch {
		case cols.hasBounds() && len(fields) > maxIdx(cols.latMin, cols.latMax, cols.lonMin, cols.lonMax):
			latMin, e1 := parseField(fields, cols.latMin)
			latMax, e2 := parseField(fields, cols.latMax)
			lonMin, e3 := parseField(fields, cols.lonMin)
			lonMax, e4 := parseField(fields, cols.lonMax)
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
				slog.Debug("skipping non-numeric poi row", "row", row)
				continue
			}
			store.Append(geomodel.NewRegion(geomodel.Rect{
				LatMin: latMin, LatMax: latMax, LonMin: lonMin, LonMax: lonMax,
			}), "")

		case cols.hasCenter() && len(fields) > maxIdx(cols.centerLat, cols.centerLon, cols.tileKm):
			latC, e1 := parseField(fields, cols.centerLat)
			lonC, e2 := parseField(fields, cols.centerLon)
			km, e3 := parseField(fields, cols.tileKm)
			if e1 != nil || e2 != nil || e3 != nil {
				slog.Debug("skipping non-numeric poi row", "row", row)
				continue
			}
			store.Append(geomodel.NewRegion(rectFromCenterKm(latC, lonC, km)), "")

		default:
			slog.Debug("skipping poi row with unknown layout", "row", row)
		}
	}

	slog.Info("poi tiles loaded", "regions", store.Len())
	return store, nil
}

func parseField(fields []string, idx int) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
}

func maxIdx(idxs ...int) int {
	m := idxs[0]
	for _, v := range idxs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// rectFromCenterKm converts a square tile given as center + edge length in
// kilometers to degree bounds at that latitude. The cosine term is clamped
// away from zero to avoid blow-up at the poles.
func rectFromCenterKm(latC, lonC, tileKm float64) geomodel.Rect {
	half := tileKm * 0.5
	dlat := half / geomodel.LatKmPerDeg
	dlon := half / (geomodel.LonKmPerDeg * clampedCos(latC))
	return geomodel.Rect{
		LatMin: latC - dlat,
		LatMax: latC + dlat,
		LonMin: lonC - dlon,
		LonMax: lonC + dlon,
	}
}

func clampedCos(latDeg float64) float64 {
	c := math.Cos(latDeg * math.Pi / 180.0)
	if math.Abs(c) < 1e-6 {
		if c < 0 {
			return -1e-6
		}
		return 1e-6
	}
	return c
}
