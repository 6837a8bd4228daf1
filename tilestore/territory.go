package tilestore

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ogpredict/geofence/geomodel"
)

// Territory CSV schema: fixed column positions. The leading id columns are
// ignored.
const (
	terColLonCenter = 3
	terColLatCenter = 4
	terColWidthDeg  = 5
	terColHeightDeg = 6
	terColLabel     = 7
)

// LoadTerritory reads the territory tile set: one region per row, bounds
// derived from center + width/height in degrees, column 7 (when present)
// carrying the whitespace-trimmed country label. Malformed rows are skipped
// and do not abort the load; region order equals CSV row order.
func LoadTerritory(path string) (*Store, error) {
	f, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readTerritory(f)
}

func readTerritory(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, err
	}

	store := &Store{}
	row := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			slog.Debug("skipping unparsable territory row", "row", row, "error", err)
			continue
		}
		if len(fields) <= terColHeightDeg {
			slog.Debug("skipping short territory row", "row", row, "fields", len(fields))
			continue
		}

		lonC, err1 := strconv.ParseFloat(strings.TrimSpace(fields[terColLonCenter]), 64)
		latC, err2 := strconv.ParseFloat(strings.TrimSpace(fields[terColLatCenter]), 64)
		w, err3 := strconv.ParseFloat(strings.TrimSpace(fields[terColWidthDeg]), 64)
		h, err4 := strconv.ParseFloat(strings.TrimSpace(fields[terColHeightDeg]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			slog.Debug("skipping non-numeric territory row", "row", row)
			continue
		}

		label := ""
		if len(fields) > terColLabel {
			label = strings.TrimSpace(fields[terColLabel])
		}

		store.Append(geomodel.NewRegion(geomodel.RectFromCenter(latC, lonC, w, h)), label)
	}

	slog.Info("territory tiles loaded", "regions", store.Len())
	return store, nil
}
