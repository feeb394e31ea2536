package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

// TequilaOptions configures a TequilaProvider.
type TequilaOptions struct {
	BaseURL string
	APIKey  string
	Retry   int
	Pace    time.Duration
}

// TequilaProvider implements prices.Fetcher for the Kiwi.com Tequila search API.
// It authenticates with a static API key header.
type TequilaProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewTequilaProvider(client *http.Client, opts TequilaOptions) *TequilaProvider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://tequila-api.kiwi.com"
	}
	return &TequilaProvider{
		name:    "tequila",
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry:  newRetryPolicy(opts.Retry, retrySearch),
		},
		circuit: newCircuitBreaker("tequila"),
		limiter: newLimiter(opts.Pace),
	}
}

func (p *TequilaProvider) Name() string {
	return p.name
}

// Authenticate only checks that an API key is configured; Tequila has no
// token exchange.
func (p *TequilaProvider) Authenticate(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: tequila api key is not configured", prices.ErrMissingCredentials)
	}
	return nil
}

func tequilaDate(d prices.Date) string {
	return d.Format("02/01/2006")
}

func (p *TequilaProvider) Search(ctx context.Context, q prices.Query, maxResults int) ([]prices.Offer, error) {
	if err := p.Authenticate(ctx); err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("fly_from", q.Origin)
		values.Set("fly_to", q.Destination)
		values.Set("date_from", tequilaDate(q.DepartureDate))
		values.Set("date_to", tequilaDate(q.DepartureDate))
		values.Set("return_from", tequilaDate(q.ReturnDate))
		values.Set("return_to", tequilaDate(q.ReturnDate))
		values.Set("flight_type", "round")
		values.Set("adults", "1")
		values.Set("curr", q.Currency)
		values.Set("limit", strconv.Itoa(maxResults))
		values.Set("sort", "price")

		u := fmt.Sprintf("%s/v2/search?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", p.apiKey)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			Price decimal.Decimal `json:"price"`
			Route []struct {
				Airline      string `json:"airline"`
				UTCDeparture string `json:"utc_departure"`
				UTCArrival   string `json:"utc_arrival"`
				Return       int    `json:"return"`
			} `json:"route"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tequila search: %w", err)
	}

	offers := make([]prices.Offer, 0, len(payload.Data))
	for _, d := range payload.Data {
		offer := prices.Offer{Price: d.Price}
		for _, leg := range d.Route {
			if leg.Return != 0 {
				continue
			}
			offer.Segments = append(offer.Segments, prices.Segment{
				CarrierCode: leg.Airline,
				Departure:   parseUTC(leg.UTCDeparture),
				Arrival:     parseUTC(leg.UTCArrival),
			})
		}
		offer.HasItinerary = len(offer.Segments) > 0
		offers = append(offers, offer)
	}
	return offers, nil
}

func parseUTC(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
