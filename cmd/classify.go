package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/dustin/go-humanize"
	"github.com/fogleman/poissondisc"
	"github.com/urfave/cli/v3"

	"github.com/ogpredict/geofence/classifier"
	"github.com/ogpredict/geofence/ephem"
	"github.com/ogpredict/geofence/geomodel"
	"github.com/ogpredict/geofence/internal/stats"
)

func classify(ctx *cli.Context) error {
	stopProfiling, err := startProfiling(ctx)
	if err != nil {
		return err
	}
	defer stopProfiling()

	var idx *classifier.Index
	switch {
	case ctx.String("territory") != "" && ctx.String("poi") != "":
		return errors.New("pass either --territory or --poi, not both")
	case ctx.String("territory") != "":
		idx, err = classifier.LoadTerritories(ctx.String("territory"))
	case ctx.String("poi") != "":
		idx, err = classifier.LoadPOIs(ctx.String("poi"), ctx.String("poi-names"))
	default:
		return errors.New("pass --territory or --poi")
	}
	if err != nil {
		return err
	}
	if idx.Store.Len() == 0 {
		return errors.New("no regions loaded, check the tile csv")
	}

	mode := classifier.AnyRegion()
	if label := ctx.String("label"); label != "" {
		mode = classifier.LabelFilter(label)
	}
	if name := ctx.String("name"); name != "" {
		if idx.Names == nil {
			return errors.New("--name needs a poi tile set")
		}
		id, ok := idx.Names.Resolve(name)
		if !ok {
			return fmt.Errorf("unknown poi name: %s", name)
		}
		mode = classifier.NameFilter(id)
	}

	points, err := loadPoints(ctx.String("points"))
	if err != nil {
		return err
	}

	cfg := classifier.ConfigDefault()
	if w := ctx.Int("workers"); w != 0 {
		cfg.Workers = w
	}

	var collector *stats.Collector
	if ctx.String("stats") != "" {
		collector, err = stats.NewCollector(250 * time.Millisecond)
		if err != nil {
			return err
		}
		collector.Start()
	}

	started := time.Now()
	matches, err := classifier.ClassifyWithConfig(ctx.Context, points, idx, mode, cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	if collector != nil {
		report := collector.Stop()
		report.PointsClassified = len(points)
		if err := report.SaveToFile(ctx.String("stats")); err != nil {
			return err
		}
	}

	if err := writeMatches(ctx.String("output"), matches); err != nil {
		return err
	}

	fmt.Printf("Classified %s points in %s: %s matched\n",
		humanize.Comma(int64(len(points))), elapsed.Round(time.Millisecond),
		humanize.Comma(int64(len(matches))))
	return nil
}

// loadPoints reads a track CSV: Lat,Lon columns required, a Time column
// (matching the ephemeris tag format) optional. Column names are matched
// case-insensitively; malformed rows are skipped.
func loadPoints(path string) ([]geomodel.Sample[string], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	bar := pb.Start64(stat.Size())
	bar.Set("prefix", "reading points")
	bar.Set(pb.Bytes, true)
	if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}` + "\n")
	}
	defer bar.Finish()

	cr := csv.NewReader(bar.NewProxyReader(file))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("points file has no header: %w", err)
	}
	timeCol, latCol, lonCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "time":
			timeCol = i
		case "lat":
			latCol = i
		case "lon":
			lonCol = i
		}
	}
	if latCol < 0 || lonCol < 0 {
		return nil, errors.New("points file needs Lat and Lon columns")
	}

	var points []geomodel.Sample[string]
	row := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			slog.Debug("skipping unparsable point row", "row", row, "error", err)
			continue
		}
		if len(fields) <= latCol || len(fields) <= lonCol {
			continue
		}
		lat, e1 := strconv.ParseFloat(strings.TrimSpace(fields[latCol]), 64)
		lon, e2 := strconv.ParseFloat(strings.TrimSpace(fields[lonCol]), 64)
		if e1 != nil || e2 != nil {
			slog.Debug("skipping non-numeric point row", "row", row)
			continue
		}

		p := geomodel.Sample[string]{Lat: lat, Lon: lon}
		if timeCol >= 0 && len(fields) > timeCol {
			p.Data = strings.TrimSpace(fields[timeCol])
			if t, err := time.Parse(ephem.TimeLayout, p.Data); err == nil {
				p.Time = t
			}
		}
		points = append(points, p)
	}

	return points, nil
}

func writeMatches(path string, matches []geomodel.Match[string]) error {
	out := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"Time", "Lat", "Lon", "Region", "Label", "Name", "Type", "Range_km", "Bearing_deg"}); err != nil {
		return err
	}
	for _, m := range matches {
		rec := []string{
			m.Sample.Data,
			strconv.FormatFloat(m.Sample.Lat, 'f', 10, 64),
			strconv.FormatFloat(m.Sample.Lon, 'f', 10, 64),
			strconv.Itoa(int(m.Region)),
			m.Label,
			m.Name,
			m.Type,
			strconv.FormatFloat(m.RangeKm, 'f', 3, 64),
			strconv.FormatFloat(m.BearingDeg, 'f', 3, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

// synth writes a synthetic track: blue-noise points over the whole sphere
// surface, useful for benchmarking classification throughput.
func synth(ctx *cli.Context) error {
	spacing, err := strconv.ParseFloat(ctx.String("spacing"), 64)
	if err != nil || spacing <= 0 {
		return errors.New("spacing must be a positive number")
	}

	samples := poissondisc.Sample(-180, -90, 180, 90, spacing, 10, rand.New(rand.NewSource(1)))

	f, err := os.Create(ctx.String("output"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"Lat", "Lon"}); err != nil {
		return err
	}
	for _, p := range samples {
		rec := []string{
			strconv.FormatFloat(p.Y, 'f', 6, 64),
			strconv.FormatFloat(p.X, 'f', 6, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	fmt.Printf("Wrote %s points to %s\n", humanize.Comma(int64(len(samples))), ctx.String("output"))
	return w.Error()
}
