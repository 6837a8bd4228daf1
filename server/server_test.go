package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/ogpredict/geofence/classifier"
	"github.com/ogpredict/geofence/tilestore"
)

const testTerritoryCSV = `id,zone,flag,lon_c,lat_c,w,h,label
1,0,0,10.0,50.0,2.0,2.0,Germany
2,0,0,2.5,46.5,3.0,2.0,France
`

func newTestServer(t testing.TB) *server {
	dir := t.TempDir()

	territoryPath := filepath.Join(dir, "territory.csv")
	if err := os.WriteFile(territoryPath, []byte(testTerritoryCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		TerritoryPath: territoryPath,
		POIPath:       filepath.Join(dir, "poi.csv"),
		POINamesPath:  filepath.Join(dir, "poi_names.csv"),
	}

	s := &server{cfg: cfg}
	var err error
	if s.metricClassifyCalls, err = meter.Int64Counter("test_classify_call_total"); err != nil {
		t.Fatal(err)
	}
	if s.metricPointsClassified, err = meter.Int64Counter("test_points_classified_total"); err != nil {
		t.Fatal(err)
	}
	if s.metricPOIAdded, err = meter.Int64Counter("test_poi_added_total"); err != nil {
		t.Fatal(err)
	}

	if err := s.reload(); err == nil {
		t.Fatal("reload must fail before the poi files exist")
	}
	// Seed one POI so the POI index is non-empty.
	if _, err := appendPOI(cfg.POIPath, cfg.POINamesPath, "Hamburg Port", "port", 20, 53.54, 9.98); err != nil {
		t.Fatal(err)
	}
	if err := s.reload(); err != nil {
		t.Fatal(err)
	}
	return s
}

func postCtx(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	return ctx
}

func TestClassifyTerritoryHandler(t *testing.T) {
	s := newTestServer(t)

	ctx := postCtx(`[[50.0, 10.0], [0.0, 0.0], [46.5, 2.5]]`)
	s.ClassifyTerritoryHandler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	body := string(ctx.Response.Body())
	if !strings.Contains(body, `"label":"Germany"`) || !strings.Contains(body, `"label":"France"`) {
		t.Fatalf("unexpected body: %s", body)
	}
	// The unmatched middle point produces no entry.
	if strings.Contains(body, `"index":1`) {
		t.Fatalf("unmatched point must be absent: %s", body)
	}
}

func TestClassifyTerritoryLabelFilter(t *testing.T) {
	s := newTestServer(t)

	ctx := postCtx(`[[50.0, 10.0], [46.5, 2.5]]`)
	ctx.QueryArgs().Set("label", "France")
	s.ClassifyTerritoryHandler(ctx)

	body := string(ctx.Response.Body())
	if strings.Contains(body, "Germany") {
		t.Fatalf("label filter must hide other territories: %s", body)
	}
	if !strings.Contains(body, `"label":"France"`) {
		t.Fatalf("expected France match: %s", body)
	}
}

func TestClassifyNoRegionsLoaded(t *testing.T) {
	s := newTestServer(t)
	s.territory.Store(classifier.NewIndex(&tilestore.Store{}, nil))

	ctx := postCtx(`[[50.0, 10.0]]`)
	s.ClassifyTerritoryHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("expected 503 for an empty tile set, got %d", ctx.Response.StatusCode())
	}

	// An empty result over a loaded tile set stays a 200.
	ctx = postCtx(`[[0.0, 0.0]]`)
	s.ClassifyPOIHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200 for zero matches, got %d", ctx.Response.StatusCode())
	}
	if body := string(ctx.Response.Body()); body != "[]" {
		t.Fatalf("expected empty match list, got %s", body)
	}
}

func TestClassifyBadBody(t *testing.T) {
	s := newTestServer(t)

	ctx := postCtx(`{"not":"a list"}`)
	s.ClassifyTerritoryHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", ctx.Response.StatusCode())
	}
}

func TestClassifyPOIByName(t *testing.T) {
	s := newTestServer(t)

	ctx := postCtx(`[[53.54, 9.98]]`)
	ctx.QueryArgs().Set("name", "Hamburg Port")
	s.ClassifyPOIHandler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	body := string(ctx.Response.Body())
	if !strings.Contains(body, `"name":"Hamburg Port"`) || !strings.Contains(body, `"range_km":`) {
		t.Fatalf("unexpected body: %s", body)
	}

	ctx = postCtx(`[[0.0, 0.0]]`)
	ctx.QueryArgs().Set("name", "Nowhere")
	s.ClassifyPOIHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 for unknown name, got %d", ctx.Response.StatusCode())
	}
}

func TestAddPOIAndComplete(t *testing.T) {
	s := newTestServer(t)

	ctx := &fasthttp.RequestCtx{}
	ctx.QueryArgs().Set("name", "Rotterdam Port")
	ctx.QueryArgs().Set("type", "port")
	ctx.QueryArgs().Set("tile_km", "15")
	ctx.QueryArgs().Set("lat", "51.95")
	ctx.QueryArgs().Set("lon", "4.14")
	s.AddPOIHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	// Immediately visible, no reload needed.
	ctx = postCtx(`[[51.95, 4.14]]`)
	s.ClassifyPOIHandler(ctx)
	if !strings.Contains(string(ctx.Response.Body()), `"name":"Rotterdam Port"`) {
		t.Fatalf("appended poi must classify: %s", ctx.Response.Body())
	}

	ctx = &fasthttp.RequestCtx{}
	ctx.QueryArgs().Set("prefix", "Rot")
	s.POINamesHandler(ctx)
	if string(ctx.Response.Body()) != `["Rotterdam Port"]` {
		t.Fatalf("unexpected completion body: %s", ctx.Response.Body())
	}

	// And it survives a reload, since the append also hit the CSVs.
	rctx := &fasthttp.RequestCtx{}
	s.ReloadHandler(rctx)
	if rctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("reload failed: %s", rctx.Response.Body())
	}
	if s.poi.Load().Store.Len() != 2 {
		t.Fatalf("expected 2 pois after reload, got %d", s.poi.Load().Store.Len())
	}
}

func TestAddPOIRejectsInvalid(t *testing.T) {
	s := newTestServer(t)

	ctx := &fasthttp.RequestCtx{}
	ctx.QueryArgs().Set("name", "Bad")
	ctx.QueryArgs().Set("tile_km", "-5")
	ctx.QueryArgs().Set("lat", "0")
	ctx.QueryArgs().Set("lon", "0")
	s.AddPOIHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", ctx.Response.StatusCode())
	}
	if s.poi.Load().Store.Len() != 1 {
		t.Fatal("rejected poi must not be indexed")
	}
}

func TestUnmarshalPointsListFast(t *testing.T) {
	var pts [][2]float64
	err := unmarshalPointsListFast([]byte(` [ [50.1 , -10.2] , [0,0] ] `), &pts)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 || pts[0] != [2]float64{50.1, -10.2} {
		t.Fatalf("unexpected result %v", pts)
	}

	pts = pts[:0]
	if err := unmarshalPointsListFast([]byte(`[]`), &pts); err != nil || len(pts) != 0 {
		t.Fatalf("empty list: err=%v pts=%v", err, pts)
	}

	for _, bad := range []string{``, `[[1]]`, `[[1 2]]`, `[[1,]]`, `{"a":1}`} {
		pts = pts[:0]
		if err := unmarshalPointsListFast([]byte(bad), &pts); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func BenchmarkClassifyHandler(b *testing.B) {
	s := newTestServer(b)

	for _, n := range []int{10, 1000, 10_000} {
		body := generatePoints(n)
		b.Run(fmt.Sprintf("points-%d", n), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ctx := postCtx(body)
				s.ClassifyTerritoryHandler(ctx)
			}
		})
	}
}

func generatePoints(n int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range n {
		sb.WriteString("[50.0, 10.0]")
		if i != n-1 {
			sb.WriteByte(',')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
