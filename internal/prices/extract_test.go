package prices

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func testQuery(t *testing.T) Query {
	return Query{
		Route:         Route{Origin: "AMS", Destination: "LIS"},
		DepartureDate: mustDate(t, "2026-07-03"),
		ReturnDate:    mustDate(t, "2026-07-10"),
		Currency:      "EUR",
	}
}

func TestExtractWithoutItineraryUsesSentinels(t *testing.T) {
	q := testQuery(t)
	fetched := time.Date(2026, 6, 1, 6, 30, 0, 0, time.UTC)

	snap := Extract(Offer{Price: decimal.RequireFromString("149.99")}, q, fetched, NewDate(fetched))

	assert.Equal(t, 149, snap.Price)
	assert.Equal(t, "N/A", snap.Airline)
	assert.Equal(t, 1, snap.Stops)
	assert.Equal(t, 2.0, snap.MaxLayoverHours)
	assert.Equal(t, 7, snap.TripLengthDays)
	assert.Equal(t, 32, snap.DaysBeforeDeparture)
	assert.Equal(t, fetched, snap.FetchedAt)
}

func TestExtractDerivesStopsCarrierAndLayover(t *testing.T) {
	q := testQuery(t)
	base := time.Date(2026, 7, 3, 7, 0, 0, 0, time.UTC)
	offer := Offer{
		Price:        decimal.RequireFromString("212.40"),
		HasItinerary: true,
		Segments: []Segment{
			{CarrierCode: "KL", Departure: base, Arrival: base.Add(90 * time.Minute)},
			{CarrierCode: "TP", Departure: base.Add(3 * time.Hour), Arrival: base.Add(4 * time.Hour)},
			{CarrierCode: "TP", Departure: base.Add(5*time.Hour + 10*time.Minute), Arrival: base.Add(6 * time.Hour)},
		},
	}

	snap := Extract(offer, q, base, mustDate(t, "2026-07-01"))

	assert.Equal(t, 212, snap.Price)
	assert.Equal(t, "KL", snap.Airline)
	assert.Equal(t, 2, snap.Stops)
	// 1h30m + 1h10m
	assert.Equal(t, 2.7, snap.MaxLayoverHours)
	assert.Equal(t, 2, snap.DaysBeforeDeparture)
}

func TestExtractDirectFlight(t *testing.T) {
	q := testQuery(t)
	base := time.Date(2026, 7, 3, 7, 0, 0, 0, time.UTC)
	offer := Offer{
		Price:        decimal.NewFromInt(99),
		HasItinerary: true,
		Segments:     []Segment{{CarrierCode: "HV", Departure: base, Arrival: base.Add(3 * time.Hour)}},
	}

	snap := Extract(offer, q, base, mustDate(t, "2026-07-05"))

	assert.Equal(t, 0, snap.Stops)
	assert.Equal(t, 0.0, snap.MaxLayoverHours)
	assert.Equal(t, -2, snap.DaysBeforeDeparture)
}

func TestFloorPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"120", 120},
		{"120.99", 120},
		{"0.5", 0},
		{"1999.01", 1999},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FloorPrice(decimal.RequireFromString(tt.raw)), tt.raw)
	}
}
