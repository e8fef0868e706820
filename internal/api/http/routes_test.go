package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/alert"
	"github.com/heatwatch/heatwatch/internal/export"
	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/notify"
	"github.com/heatwatch/heatwatch/internal/quality"
	"github.com/heatwatch/heatwatch/internal/rules"
	"github.com/heatwatch/heatwatch/internal/store"
)

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	mem := store.NewMemoryStore()
	zlog := zap.NewNop()
	throttle := alert.NewThrottle(mem)
	engine := alert.NewEngine(mem, throttle, rules.NYC2015())
	worker := alert.NewWorker(mem, engine, throttle, notify.NewLogDispatcher(zlog), zlog)

	app := fiber.New()
	RegisterRoutes(app, Handlers{
		Readings: mem,
		Users:    mem,
		Exporter: export.NewExporter(mem, mem),
		Worker:   worker,
		Enricher: quality.NewEnricher(mem, mem, nopLookup{}, rules.NYC2015(), zlog),
		Dedupe:   quality.NewDeduplicator(mem, zlog),
		Logger:   zlog,
	})
	return app, mem
}

type nopLookup struct{}

func (nopLookup) Lookup(ctx context.Context, loc models.Location, ts time.Time) (float64, error) {
	return 30, nil
}

func TestExportReadings_RequiresRange(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/readings/export", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportReadings_RejectsUnknownFormat(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/readings/export?format=pdf&from=2015-03-01T00:00:00Z&to=2015-03-02T00:00:00Z", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportReadings_CSV(t *testing.T) {
	app, mem := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveUser(ctx, &models.User{ID: "u1", TimeZone: "UTC", Address: "somewhere", ZipCode: "10001"}))
	require.NoError(t, mem.SaveReading(ctx, &models.Reading{
		ID: "r1", SensorID: "s1", UserID: "u1", IndoorTemp: 70,
		CreatedAt: time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC), TimeZone: "UTC",
	}))

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/readings/export?from=2015-03-01T00:00:00Z&to=2015-03-02T00:00:00Z", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "s1")
}

func TestUserReadings_UnknownUser(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/ghost/readings", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDedupeUser(t *testing.T) {
	app, mem := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveUser(ctx, &models.User{ID: "u1", TimeZone: "UTC"}))
	createdAt := time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, mem.SaveReading(ctx, &models.Reading{
			ID: id, SensorID: "s1", UserID: "u1", IndoorTemp: 45,
			CreatedAt: createdAt, TimeZone: "UTC",
		}))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/dedupe", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	remaining, err := mem.ReadingsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRunAlertPass(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/alerts/run", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunEnrichPass(t *testing.T) {
	app, mem := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveUser(ctx, &models.User{ID: "u1", TimeZone: "UTC", Address: "somewhere", ZipCode: "10001"}))
	require.NoError(t, mem.SaveReading(ctx, &models.Reading{
		ID: "r1", SensorID: "s1", UserID: "u1", IndoorTemp: 45,
		CreatedAt: time.Date(2015, time.January, 15, 12, 0, 0, 0, time.UTC), TimeZone: "UTC",
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/enrich/run", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	pending, err := mem.ReadingsMissingOutdoorTemp(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
