package prices

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredentials is returned when a provider has no credentials configured.
	ErrMissingCredentials = errors.New("missing provider credentials")
	// ErrAuthFailed is returned when authentication exhausts its retry budget.
	ErrAuthFailed = errors.New("authentication failed")
)

// Fetcher abstracts a flight-pricing source (e.g. Amadeus, Kiwi Tequila).
//
// Search failures are soft: callers treat a returned error exactly like an
// empty result and carry on with the next query.
type Fetcher interface {
	Name() string
	Authenticate(ctx context.Context) error
	Search(ctx context.Context, q Query, maxResults int) ([]Offer, error)
}

// Repository persists the two aggregated artifacts. Loads never fail: a
// missing or unreadable artifact is reported as empty.
type Repository interface {
	LoadSeries() TimeSeries
	SaveSeries(series TimeSeries) error
	LoadBuckets() BucketStore
	SaveBuckets(buckets BucketStore) error
}

// Exporter writes an additional rendition of the time series after a sweep.
type Exporter interface {
	Name() string
	Export(series TimeSeries) error
}
