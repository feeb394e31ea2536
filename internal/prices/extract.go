package prices

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Enrichment values used when an offer carries no itinerary data.
const (
	UnknownAirline     = "N/A"
	UnknownStops       = 1
	UnknownLayoverHour = 2.0
)

// Extract normalizes one offer into a PriceSnapshot. It never fails: offers
// with missing itinerary data still produce a snapshot with the real price.
func Extract(offer Offer, q Query, fetchedAt time.Time, observed Date) PriceSnapshot {
	snap := PriceSnapshot{
		Origin:              q.Origin,
		Destination:         q.Destination,
		OutboundDate:        q.DepartureDate,
		ReturnDate:          q.ReturnDate,
		TripLengthDays:      q.DepartureDate.DaysUntil(q.ReturnDate),
		DaysBeforeDeparture: observed.DaysUntil(q.DepartureDate),
		Price:               FloorPrice(offer.Price),
		FetchedAt:           fetchedAt.UTC(),
	}

	if !offer.HasItinerary || len(offer.Segments) == 0 {
		snap.Airline = UnknownAirline
		snap.Stops = UnknownStops
		snap.MaxLayoverHours = UnknownLayoverHour
		return snap
	}

	snap.Airline = offer.Segments[0].CarrierCode
	if snap.Airline == "" {
		snap.Airline = UnknownAirline
	}
	snap.Stops = len(offer.Segments) - 1
	snap.MaxLayoverHours = layoverHours(offer.Segments)
	return snap
}

// FloorPrice rounds a price down to whole currency units.
func FloorPrice(p decimal.Decimal) int {
	return int(p.Floor().IntPart())
}

// layoverHours sums the ground time between consecutive segments, rounded to
// one decimal. Gaps with unknown timestamps are skipped.
func layoverHours(segments []Segment) float64 {
	var total time.Duration
	for i := 1; i < len(segments); i++ {
		prev, next := segments[i-1], segments[i]
		if prev.Arrival.IsZero() || next.Departure.IsZero() {
			continue
		}
		if gap := next.Departure.Sub(prev.Arrival); gap > 0 {
			total += gap
		}
	}
	return math.Round(total.Hours()*10) / 10
}
