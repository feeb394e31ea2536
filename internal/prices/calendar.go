package prices

import (
	"context"
	"fmt"
	"log"
)

// CalendarRequest describes one calendar sweep over a date window.
type CalendarRequest struct {
	Route      Route
	Year       int // 0 means any year
	Start      Date
	End        Date
	Step       int // days between sampled departure dates
	TripLength int
	Currency   string
	MaxResults int
}

// CalendarResult is the sparse outcome of a calendar sweep.
type CalendarResult struct {
	// Cheapest maps an ISO date to the lowest floored price seen for it. Dates
	// without offers are absent, never zero.
	Cheapest map[string]int
	Sampled  int
	Failed   int
}

// CalendarCheapest issues one search per sampled date and keeps the cheapest
// price of each date that returned at least one offer.
func CalendarCheapest(ctx context.Context, f Fetcher, req CalendarRequest) (CalendarResult, error) {
	if req.Step <= 0 {
		return CalendarResult{}, fmt.Errorf("calendar step must be positive, got %d", req.Step)
	}
	if req.End.Before(req.Start.Time) {
		return CalendarResult{}, fmt.Errorf("calendar window ends (%s) before it starts (%s)", req.End, req.Start)
	}

	res := CalendarResult{Cheapest: make(map[string]int)}
	for d := req.Start; !d.After(req.End.Time); d = d.AddDays(req.Step) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if req.Year != 0 && d.Year() != req.Year {
			continue
		}
		res.Sampled++

		q := Query{
			Route:         req.Route,
			DepartureDate: d,
			ReturnDate:    d.AddDays(req.TripLength),
			Currency:      req.Currency,
		}
		offers, err := f.Search(ctx, q, req.MaxResults)
		if err != nil {
			log.Printf("WARN: %s calendar search %s %s failed: %v", f.Name(), req.Route.Key(), d, err)
			res.Failed++
			continue
		}

		if best, ok := cheapestOffer(offers); ok {
			res.Cheapest[d.String()] = FloorPrice(best.Price)
		}
	}
	return res, nil
}

// cheapestOffer returns the lowest-priced offer. Upstream ordering is not
// trusted.
func cheapestOffer(offers []Offer) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Price.LessThan(best.Price) {
			best = o
		}
	}
	return best, true
}
