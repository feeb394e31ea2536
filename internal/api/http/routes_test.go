package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
	"github.com/i474232898/flight-price-aggregation/internal/store"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	repo := store.NewMemoryStore()
	out, err := prices.ParseDate("2026-07-03")
	require.NoError(t, err)
	require.NoError(t, repo.SaveSeries(prices.TimeSeries{
		{Origin: "AMS", Destination: "LIS", OutboundDate: out, Price: 120},
		{Origin: "AMS", Destination: "BCN", OutboundDate: out, Price: 80},
		{Origin: "AMS", Destination: "LIS", OutboundDate: out.AddDays(10), Price: 110},
	}))
	require.NoError(t, repo.SaveBuckets(prices.MergeBuckets(nil, "AMS-LIS", 2026,
		map[string]int{"2026-07-03": 120, "2026-07-10": 99})))

	app := fiber.New()
	RegisterRoutes(app, prices.NewService(repo, nil, prices.ServiceOptions{}))
	return app
}

func get(t *testing.T, app *fiber.App, url string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func TestSeriesEndpointFilters(t *testing.T) {
	app := newTestApp(t)

	status, body := get(t, app, "/api/v1/series?origin=ams&destination=LIS&to=2026-07-05")

	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
	snaps := body["snapshots"].([]any)
	first := snaps[0].(map[string]any)
	assert.Equal(t, "2026-07-03", first["outbound_date"])
	assert.EqualValues(t, 120, first["price"])
}

func TestSeriesEndpointValidation(t *testing.T) {
	app := newTestApp(t)

	for _, url := range []string{
		"/api/v1/series?origin=AMSTERDAM",
		"/api/v1/series?origin=A1S",
		"/api/v1/series?from=03-07-2026",
		"/api/v1/series?from=2026-07-05&to=2026-07-01",
	} {
		status, _ := get(t, app, url)
		assert.Equal(t, http.StatusBadRequest, status, url)
	}
}

func TestBucketsEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, body := get(t, app, "/api/v1/buckets/ams-lis/2026")
	require.Equal(t, http.StatusOK, status)
	months := body["months"].(map[string]any)
	assert.Equal(t, []any{120.0, 99.0, nil, nil}, months["07"])

	status, _ = get(t, app, "/api/v1/buckets/AMS-LIS/2025")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, app, "/api/v1/buckets/AMS-LIS/20x6")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLatestRunBeforeFirstSweep(t *testing.T) {
	app := newTestApp(t)

	status, _ := get(t, app, "/api/v1/runs/latest")

	assert.Equal(t, http.StatusNotFound, status)
}
