// Package server exposes the classification engine over HTTP: batch
// classify endpoints for territory and POI tile sets, interactive POI
// addition, name completion, and a reload hook for refreshing tile data
// without a restart.
package server

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ogpredict/geofence/classifier"
	"github.com/ogpredict/geofence/geomodel"
	"github.com/ogpredict/geofence/tilestore"
)

const MaxBodySize = 32 * 1000 * 1000 // 32MB

var meter = otel.Meter("github.com/ogpredict/geofence/server")

// Config names the tile CSVs the server loads and reloads from.
type Config struct {
	TerritoryPath string
	POIPath       string
	POINamesPath  string
}

func Run(ctx context.Context, address string, cfg Config) error {
	log := slog.Default()

	metricClassifyCalls, err := meter.Int64Counter("http_classify_call_total")
	if err != nil {
		return err
	}
	metricPointsClassified, err := meter.Int64Counter("points_classified_total")
	if err != nil {
		return err
	}
	metricPOIAdded, err := meter.Int64Counter("poi_added_total")
	if err != nil {
		return err
	}

	s := &server{
		cfg: cfg,

		metricClassifyCalls:    metricClassifyCalls,
		metricPointsClassified: metricPointsClassified,
		metricPOIAdded:         metricPOIAdded,
	}
	if err := s.reload(); err != nil {
		return fmt.Errorf("initial tile load: %w", err)
	}

	r := router.New()
	r.GET("/healthz", s.HealthHandler)
	r.POST("/classify/territory", s.ClassifyTerritoryHandler)
	r.POST("/classify/poi", s.ClassifyPOIHandler)
	r.POST("/poi", s.AddPOIHandler)
	r.GET("/poi/names", s.POINamesHandler)
	r.POST("/reload", s.ReloadHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	httpServer := &fasthttp.Server{
		ReadTimeout:        time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            r.Handler,
	}

	go func() {
		log.Info("Server listening", "address", address)
		if err := httpServer.ListenAndServe(address); err != http.ErrServerClosed {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	slog.Info("Server started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return httpServer.ShutdownWithContext(shutdownCtx)
}

type server struct {
	cfg Config

	territory atomic.Pointer[classifier.Index]
	poi       atomic.Pointer[classifier.Index]

	// stateMu is held shared by classification runs and exclusively by
	// POI appends and reloads, so index mutation never overlaps a scan.
	// flight serializes classification runs themselves, a new request
	// canceling the previous one.
	stateMu sync.RWMutex
	flight  flight

	metricClassifyCalls    metric.Int64Counter
	metricPointsClassified metric.Int64Counter
	metricPOIAdded         metric.Int64Counter
}

// flight implements the one-computation-at-a-time policy: starting a new
// classification cancels the one in progress and waits for its workers to
// drain before the new run touches shared state.
type flight struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (f *flight) begin(parent context.Context) (context.Context, func()) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	return ctx, func() {
		cancel()
		close(done)
		f.mu.Lock()
		if f.done == done {
			f.cancel = nil
			f.done = nil
		}
		f.mu.Unlock()
	}
}

func (s *server) reload() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	territory, err := classifier.LoadTerritories(s.cfg.TerritoryPath)
	if err != nil {
		return err
	}
	poi, err := classifier.LoadPOIs(s.cfg.POIPath, s.cfg.POINamesPath)
	if err != nil {
		return err
	}
	s.territory.Store(territory)
	s.poi.Store(poi)
	return nil
}

func (s *server) HealthHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBodyString("ok")
}

func (s *server) ClassifyTerritoryHandler(ctx *fasthttp.RequestCtx) {
	mode := classifier.AnyRegion()
	if label := string(ctx.QueryArgs().Peek("label")); label != "" {
		mode = classifier.LabelFilter(label)
	}
	s.classify(ctx, s.territory.Load(), mode)
}

func (s *server) ClassifyPOIHandler(ctx *fasthttp.RequestCtx) {
	idx := s.poi.Load()

	mode := classifier.AnyRegion()
	if name := string(ctx.QueryArgs().Peek("name")); name != "" {
		id, ok := idx.Names.Resolve(name)
		if !ok {
			ctx.Response.SetStatusCode(http.StatusNotFound)
			ctx.Response.SetBodyString("unknown poi name: " + name)
			return
		}
		mode = classifier.NameFilter(id)
	}
	s.classify(ctx, idx, mode)
}

func (s *server) classify(ctx *fasthttp.RequestCtx, idx *classifier.Index, mode classifier.Mode) {
	s.metricClassifyCalls.Add(ctx, 1)

	// Configuration problem, not an empty result: distinct from both the
	// zero-matches 200 and the superseded-request 409.
	if idx.Store.Len() == 0 {
		ctx.Response.SetStatusCode(http.StatusServiceUnavailable)
		ctx.Response.SetBodyString("no regions loaded")
		return
	}

	req := reqPointsPool.Get().(*[][2]float64)
	*req = (*req)[:0]
	defer reqPointsPool.Put(req)

	if err := unmarshalPointsListFast(ctx.Request.Body(), req); err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("failed to parse request: " + err.Error())
		return
	}
	s.metricPointsClassified.Add(ctx, int64(len(*req)))

	points := make([]geomodel.Sample[int], len(*req))
	for i, p := range *req {
		points[i] = geomodel.Sample[int]{Lat: p[0], Lon: p[1], Data: i}
	}

	jobID := uuid.NewString()
	runCtx, finish := s.flight.begin(context.Background())
	defer finish()

	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	matches, err := classifier.Classify(runCtx, points, idx, mode)
	if errors.Is(err, classifier.ErrCanceled) {
		slog.Debug("classification superseded", "job", jobID)
		ctx.Response.SetStatusCode(http.StatusConflict)
		ctx.Response.SetBodyString("superseded by a newer request")
		return
	}
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		return
	}

	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	writeMatchListFast(ctx.Response.BodyWriter(), matches)
}

func (s *server) AddPOIHandler(ctx *fasthttp.RequestCtx) {
	name := string(ctx.QueryArgs().Peek("name"))
	typ := string(ctx.QueryArgs().Peek("type"))
	tileKm, err1 := strconv.ParseFloat(string(ctx.QueryArgs().Peek("tile_km")), 64)
	lat, err2 := strconv.ParseFloat(string(ctx.QueryArgs().Peek("lat")), 64)
	lon, err3 := strconv.ParseFloat(string(ctx.QueryArgs().Peek("lon")), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("tile_km, lat and lon must be numeric")
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	region, err := appendPOI(s.cfg.POIPath, s.cfg.POINamesPath, name, typ, tileKm, lat, lon)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString(err.Error())
		return
	}
	id := s.poi.Load().AppendRegion(region, name, typ)
	s.metricPOIAdded.Add(ctx, 1)

	slog.Info("poi added", "name", name, "region", id)
	ctx.Response.SetStatusCode(http.StatusCreated)
	fmt.Fprintf(ctx.Response.BodyWriter(), `{"region":%d}`, id)
}

func (s *server) POINamesHandler(ctx *fasthttp.RequestCtx) {
	prefix := string(ctx.QueryArgs().Peek("prefix"))
	limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))

	names := s.poi.Load().Names.Complete(prefix, limit)

	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	writeStringListFast(ctx.Response.BodyWriter(), names)
}

func (s *server) ReloadHandler(ctx *fasthttp.RequestCtx) {
	if err := s.reload(); err != nil {
		slog.Error("tile reload failed", "error", err)
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString(err.Error())
		return
	}
	slog.Info("tiles reloaded",
		"territories", s.territory.Load().Store.Len(),
		"pois", s.poi.Load().Store.Len())
	ctx.Response.SetStatusCode(http.StatusOK)
}

// appendPOI writes the tile row and the aligned name row; a failure after
// the tile write leaves the files out of step and is surfaced for the
// operator rather than rolled back.
func appendPOI(tilePath, namesPath, name, typ string, tileKm, lat, lon float64) (geomodel.Region, error) {
	region, err := tilestore.AppendToCSV(tilePath, name, typ, tileKm, lat, lon)
	if err != nil {
		return geomodel.Region{}, err
	}
	if err := tilestore.AppendNameToCSV(namesPath, name, typ); err != nil {
		return geomodel.Region{}, fmt.Errorf("tile row written but name row failed: %w", err)
	}
	return region, nil
}

var reqPointsPool = sync.Pool{
	New: func() any {
		s := make([][2]float64, 0, 1024)
		return &s
	},
}
