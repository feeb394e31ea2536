package prices

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	t = t.UTC()
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the whole number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON overrides the RFC 3339 encoding promoted from time.Time.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Route is an ordered origin/destination pair of IATA codes.
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Key returns the canonical "ORIG-DEST" key used by the bucket store.
func (r Route) Key() string {
	return r.Origin + "-" + r.Destination
}

// ParseRouteKey is the inverse of Route.Key.
func ParseRouteKey(key string) (Route, error) {
	orig, dest, ok := strings.Cut(key, "-")
	if !ok || orig == "" || dest == "" {
		return Route{}, fmt.Errorf("invalid route key %q", key)
	}
	return Route{Origin: strings.ToUpper(orig), Destination: strings.ToUpper(dest)}, nil
}

// Query is a single round-trip search request.
type Query struct {
	Route
	DepartureDate Date
	ReturnDate    Date
	Currency      string
}

// Segment is one flight leg of an offer's outbound itinerary.
type Segment struct {
	CarrierCode string
	Departure   time.Time
	Arrival     time.Time
}

// Offer is one upstream search result. It is never persisted.
type Offer struct {
	Price decimal.Decimal
	// Segments is ordered. HasItinerary is false when the payload carried no usable
	// itinerary or segment data.
	Segments     []Segment
	HasItinerary bool
}

// PriceSnapshot is one persisted observation of a route's price.
type PriceSnapshot struct {
	Origin              string    `json:"origin" csv:"origin"`
	Destination         string    `json:"destination" csv:"destination"`
	OutboundDate        Date      `json:"outbound_date" csv:"outbound_date"`
	ReturnDate          Date      `json:"return_date" csv:"return_date"`
	TripLengthDays      int       `json:"trip_length_days" csv:"trip_length_days"`
	DaysBeforeDeparture int       `json:"days_before_departure" csv:"days_before_departure"`
	Price               int       `json:"price" csv:"price"`
	Airline             string    `json:"airline" csv:"airline"`
	Stops               int       `json:"stops" csv:"stops"`
	MaxLayoverHours     float64   `json:"max_layover_hours" csv:"max_layover_hours"`
	FetchedAt           time.Time `json:"fetched_at" csv:"fetched_at"`
}

// TimeSeries is ordered by insertion, oldest first.
type TimeSeries []PriceSnapshot

// BucketsPerMonth is the number of 7-day buckets a month is split into.
const BucketsPerMonth = 4

// BucketRow holds the lowest known price per bucket; nil means unknown.
type BucketRow [BucketsPerMonth]*int

// BucketMatrix maps a two-digit month ("01".."12") to its bucket row.
type BucketMatrix map[string]BucketRow

// BucketStore maps route key → year → matrix.
type BucketStore map[string]map[string]BucketMatrix

// RunReport summarizes one sweep.
type RunReport struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Routes        int       `json:"routes"`
	PointQueries  int       `json:"point_queries"`
	Snapshots     int       `json:"snapshots"`
	CalendarDates int       `json:"calendar_dates"`
	PricedDates   int       `json:"priced_dates"`
	FailedQueries int       `json:"failed_queries"`
	SeriesLen     int       `json:"series_len"`
}
