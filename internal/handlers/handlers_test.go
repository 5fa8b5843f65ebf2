package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/swdash/internal/cache"
	"github.com/charlesng35/swdash/internal/reader"
	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/pkg/response"
)

var epoch = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type stubGateway struct {
	tables  []string
	queries atomic.Int32
	listErr error
}

func (g *stubGateway) ListTables(context.Context) ([]string, error) {
	return g.tables, g.listErr
}

func (g *stubGateway) Columns(context.Context, string) ([]string, error) {
	return []string{"time_tag", "kp"}, nil
}

func (g *stubGateway) Query(_ context.Context, _ string, rowCap int) (*snapshot.Snapshot, error) {
	g.queries.Add(1)
	rows := [][]any{
		{"2024-05-10 12:00:00", 3.3},
		{"2024-05-10 12:01:00", 4.0},
		{"2024-05-10 12:02:00", 5.7},
	}
	if rowCap > 0 && rowCap < len(rows) {
		rows = rows[:rowCap]
	}
	return snapshot.New([]string{"time_tag", "kp"}, rows), nil
}

func (g *stubGateway) QuerySince(context.Context, string, string, time.Time) (*snapshot.Snapshot, error) {
	return snapshot.New([]string{"time_tag", "kp"}, nil), nil
}

func newTestReader(gw *stubGateway) *reader.Reader {
	clock := clockwork.NewFakeClockAt(epoch)
	if gw == nil {
		return reader.New(nil, cache.New(cache.Config{}), reader.WithClock(clock))
	}
	return reader.New(gw, cache.New(cache.Config{}), reader.WithClock(clock))
}

func newTableRouter(t *testing.T, r *reader.Reader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tables, err := NewTableHandler(r)
	require.NoError(t, err)
	caches, err := NewCacheHandler(r)
	require.NoError(t, err)

	engine := gin.New()
	engine.GET("/api/tables", tables.List)
	engine.GET("/api/tables/find", tables.Find)
	engine.GET("/api/tables/:name", tables.Read)
	engine.DELETE("/api/cache", caches.ClearAll)
	engine.DELETE("/api/cache/:name", caches.ClearTable)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, target string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestNewHandlersRequireDependencies(t *testing.T) {
	_, err := NewTableHandler(nil)
	require.Error(t, err)
	_, err = NewCacheHandler(nil)
	require.Error(t, err)
}

func TestListTables(t *testing.T) {
	engine := newTableRouter(t, newTestReader(&stubGateway{tables: []string{"ace_swepam_1m", "dst_index"}}))

	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Equal(t, 2, resp.Meta.Total)

	data := resp.Data.(map[string]any)
	require.Equal(t, []any{"ace_swepam_1m", "dst_index"}, data["tables"])
}

func TestListTablesStoreUnavailable(t *testing.T) {
	engine := newTableRouter(t, newTestReader(nil))

	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "store.unavailable", resp.Error.Code)
}

func TestListTablesQueryFailure(t *testing.T) {
	engine := newTableRouter(t, newTestReader(&stubGateway{listErr: errors.New("connection refused")}))

	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "store.query_failed", resp.Error.Code)
}

func TestFindTable(t *testing.T) {
	gw := &stubGateway{tables: []string{"ace_swepam_1m", "goes_xray_flux_1m", "goes_proton_flux_5m"}}
	engine := newTableRouter(t, newTestReader(gw))

	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables/find?keywords=GOES,flux")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	require.Equal(t, true, data["found"])
	require.Equal(t, "goes_xray_flux_1m", data["table"])

	_, resp = doRequest(t, engine, http.MethodGet, "/api/tables/find?keywords=dst")
	data = resp.Data.(map[string]any)
	require.Equal(t, false, data["found"])
	require.Equal(t, "", data["table"])

	rec, _ = doRequest(t, engine, http.MethodGet, "/api/tables/find")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadTable(t *testing.T) {
	gw := &stubGateway{tables: []string{"boulder_k_index_1m"}}
	engine := newTableRouter(t, newTestReader(gw))

	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables/boulder_k_index_1m")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 3, resp.Meta.Total)

	data := resp.Data.(map[string]any)
	require.Equal(t, "boulder_k_index_1m", data["table"])
	require.Equal(t, float64(3), data["row_count"])
	require.Equal(t, "time_tag", data["time_column"])
	require.NotEmpty(t, data["cached_at"])

	columns := data["columns"].([]any)
	require.Len(t, columns, 2)
	require.Equal(t, "time", columns[0].(map[string]any)["kind"])

	_, _ = doRequest(t, engine, http.MethodGet, "/api/tables/boulder_k_index_1m")
	require.Equal(t, int32(1), gw.queries.Load())
}

func TestReadTableServesCacheWhenListingFails(t *testing.T) {
	gw := &stubGateway{tables: []string{"dst_index"}}
	engine := newTableRouter(t, newTestReader(gw))

	rec, _ := doRequest(t, engine, http.MethodGet, "/api/tables/dst_index")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), gw.queries.Load())

	gw.listErr = errors.New("breaker open")
	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables/dst_index")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 3, resp.Meta.Total)
	require.Equal(t, int32(1), gw.queries.Load())

	rec, resp = doRequest(t, engine, http.MethodGet, "/api/tables/solar_wind")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "store.query_failed", resp.Error.Code)
}

func TestReadTableServesCacheWithoutStore(t *testing.T) {
	r := newTestReader(nil)
	snap := snapshot.New([]string{"time_tag", "kp"}, [][]any{{"2024-05-10 12:00:00", 3.3}})
	require.NoError(t, r.Cache().Put(r.Cache().KeyFor("dst_index", 0), snap, epoch))
	engine := newTableRouter(t, r)

	rec, resp := doRequest(t, engine, http.MethodGet, "/api/tables/dst_index?ttl=1s")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, resp.Meta.Total)

	rec, resp = doRequest(t, engine, http.MethodGet, "/api/tables/solar_wind")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "store.unavailable", resp.Error.Code)
}

func TestReadTableOptions(t *testing.T) {
	gw := &stubGateway{tables: []string{"boulder_k_index_1m"}}
	engine := newTableRouter(t, newTestReader(gw))

	_, resp := doRequest(t, engine, http.MethodGet, "/api/tables/boulder_k_index_1m?limit=2")
	require.Equal(t, 2, resp.Meta.Total)

	_, _ = doRequest(t, engine, http.MethodGet, "/api/tables/boulder_k_index_1m?cache=false")
	_, _ = doRequest(t, engine, http.MethodGet, "/api/tables/boulder_k_index_1m?cache=false")
	require.Equal(t, int32(3), gw.queries.Load())
}

func TestReadTableRejectsBadInput(t *testing.T) {
	engine := newTableRouter(t, newTestReader(&stubGateway{tables: []string{"dst_index"}}))

	cases := map[string]int{
		"/api/tables/dst-index":               http.StatusBadRequest,
		"/api/tables/dst_index?limit=-1":      http.StatusBadRequest,
		"/api/tables/dst_index?limit=ten":     http.StatusBadRequest,
		"/api/tables/dst_index?ttl=forever":   http.StatusBadRequest,
		"/api/tables/dst_index?refresh=maybe": http.StatusBadRequest,
		"/api/tables/solar_wind":              http.StatusNotFound,
	}
	for target, want := range cases {
		rec, resp := doRequest(t, engine, http.MethodGet, target)
		require.Equal(t, want, rec.Code, target)
		require.False(t, resp.Success, target)
	}
}

func TestClearCache(t *testing.T) {
	gw := &stubGateway{tables: []string{"dst_index", "boulder_k_index_1m"}}
	engine := newTableRouter(t, newTestReader(gw))

	doRequest(t, engine, http.MethodGet, "/api/tables/dst_index")
	doRequest(t, engine, http.MethodGet, "/api/tables/dst_index?limit=10")
	doRequest(t, engine, http.MethodGet, "/api/tables/boulder_k_index_1m")

	rec, resp := doRequest(t, engine, http.MethodDelete, "/api/cache/dst_index")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), resp.Data.(map[string]any)["removed"])

	_, resp = doRequest(t, engine, http.MethodDelete, "/api/cache")
	require.Equal(t, float64(1), resp.Data.(map[string]any)["removed"])

	rec, _ = doRequest(t, engine, http.MethodDelete, "/api/cache/bad;name")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseDurationQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for raw, want := range map[string]time.Duration{
		"":    0,
		"600": 10 * time.Minute,
		"90s": 90 * time.Second,
	} {
		ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ctx.Request = httptest.NewRequest(http.MethodGet, "/?ttl="+raw, nil)
		got, err := parseDurationQuery(ctx, "ttl")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
