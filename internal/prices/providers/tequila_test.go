package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

const tequilaJSON = `{"data":[
	{"price":210,"route":[
		{"airline":"VY","utc_departure":"2026-07-03T06:00:00.000Z","utc_arrival":"2026-07-03T08:00:00.000Z","return":0},
		{"airline":"VY","utc_departure":"2026-07-03T09:30:00.000Z","utc_arrival":"2026-07-03T11:00:00.000Z","return":0},
		{"airline":"KL","utc_departure":"2026-07-10T06:00:00.000Z","utc_arrival":"2026-07-10T09:00:00.000Z","return":1}
	]},
	{"price":199.5,"route":[]}
]}`

func TestTequilaSearchParsesOutboundLegs(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		_, _ = w.Write([]byte(tequilaJSON))
	}))
	defer srv.Close()

	p := NewTequilaProvider(srv.Client(), TequilaOptions{BaseURL: srv.URL, APIKey: "k"})

	offers, err := p.Search(context.Background(), testQuery(t), 10)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "k", gotKey)
	assert.Contains(t, gotQuery, "date_from=03%2F07%2F2026")
	assert.Contains(t, gotQuery, "return_from=10%2F07%2F2026")

	first := offers[0]
	assert.True(t, first.HasItinerary)
	require.Len(t, first.Segments, 2)
	snap := prices.Extract(first, testQuery(t), time.Now(), prices.NewDate(time.Now()))
	assert.Equal(t, 210, snap.Price)
	assert.Equal(t, "VY", snap.Airline)
	assert.Equal(t, 1, snap.Stops)
	assert.Equal(t, 1.5, snap.MaxLayoverHours)

	assert.False(t, offers[1].HasItinerary)
	assert.Equal(t, "199.5", offers[1].Price.String())
}

func TestTequilaRequiresAPIKey(t *testing.T) {
	p := NewTequilaProvider(http.DefaultClient, TequilaOptions{})

	_, err := p.Search(context.Background(), testQuery(t), 10)

	assert.True(t, errors.Is(err, prices.ErrMissingCredentials))
}

func TestTequilaRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := NewTequilaProvider(srv.Client(), TequilaOptions{BaseURL: srv.URL, APIKey: "k"})
	slept := 0
	p.httpCfg.Retry.Sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		return nil
	}

	offers, err := p.Search(context.Background(), testQuery(t), 10)

	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, slept)
}
