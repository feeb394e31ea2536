package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

const amadeusTimeLayout = "2006-01-02T15:04:05"

// tokenSkew refreshes tokens a little before upstream expiry.
const tokenSkew = 60 * time.Second

// AmadeusOptions configures an AmadeusProvider.
type AmadeusOptions struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Retry        int
	Pace         time.Duration
}

// AmadeusProvider implements prices.Fetcher for the Amadeus Self-Service API.
type AmadeusProvider struct {
	name         string
	baseURL      string
	clientID     string
	clientSecret string

	authCfg   HTTPClientConfig
	searchCfg HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewAmadeusProvider(client *http.Client, opts AmadeusOptions) *AmadeusProvider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://test.api.amadeus.com"
	}
	return &AmadeusProvider{
		name:         "amadeus",
		baseURL:      baseURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		authCfg: HTTPClientConfig{
			Client: client,
			Retry:  newRetryPolicy(opts.Retry, retryAny),
		},
		searchCfg: HTTPClientConfig{
			Client: client,
			Retry:  newRetryPolicy(opts.Retry, retrySearch),
		},
		circuit: newCircuitBreaker("amadeus"),
		limiter: newLimiter(opts.Pace),
		now:     time.Now,
	}
}

func (p *AmadeusProvider) Name() string {
	return p.name
}

// Authenticate makes sure a valid bearer token is cached, exchanging the
// client credentials for a new one when needed.
func (p *AmadeusProvider) Authenticate(ctx context.Context) error {
	_, err := p.bearer(ctx)
	return err
}

func (p *AmadeusProvider) bearer(ctx context.Context) (string, error) {
	if p.clientID == "" || p.clientSecret == "" {
		return "", fmt.Errorf("%w: amadeus client id and secret are required", prices.ErrMissingCredentials)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}

	buildRequest := func() (*http.Request, error) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", p.clientID)
		form.Set("client_secret", p.clientSecret)

		req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.authCfg, nil, buildRequest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", prices.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", prices.ErrAuthFailed, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", prices.ErrAuthFailed)
	}

	ttl := time.Duration(payload.ExpiresIn)*time.Second - tokenSkew
	if ttl <= 0 {
		ttl = time.Duration(payload.ExpiresIn) * time.Second
	}
	p.token = payload.AccessToken
	p.expiresAt = p.now().Add(ttl)
	log.Printf("INFO: amadeus token acquired, valid for %s", ttl)
	return p.token, nil
}

// Search issues one flight-offers request. Rate limiting and server errors
// are retried; anything else fails the query immediately.
func (p *AmadeusProvider) Search(ctx context.Context, q prices.Query, maxResults int) ([]prices.Offer, error) {
	token, err := p.bearer(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("originLocationCode", q.Origin)
		values.Set("destinationLocationCode", q.Destination)
		values.Set("departureDate", q.DepartureDate.String())
		values.Set("returnDate", q.ReturnDate.String())
		values.Set("adults", "1")
		values.Set("currencyCode", q.Currency)
		values.Set("max", strconv.Itoa(maxResults))

		u := fmt.Sprintf("%s/v2/shopping/flight-offers?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.searchCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			Price struct {
				GrandTotal string `json:"grandTotal"`
				Total      string `json:"total"`
			} `json:"price"`
			Itineraries []struct {
				Segments []struct {
					CarrierCode string `json:"carrierCode"`
					Departure   struct {
						At string `json:"at"`
					} `json:"departure"`
					Arrival struct {
						At string `json:"at"`
					} `json:"arrival"`
				} `json:"segments"`
			} `json:"itineraries"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode flight offers: %w", err)
	}

	offers := make([]prices.Offer, 0, len(payload.Data))
	for _, d := range payload.Data {
		raw := d.Price.GrandTotal
		if raw == "" {
			raw = d.Price.Total
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			log.Printf("WARN: amadeus offer %s %s has unparseable price %q", q.Key(), q.DepartureDate, raw)
			continue
		}

		offer := prices.Offer{Price: price}
		if len(d.Itineraries) > 0 && len(d.Itineraries[0].Segments) > 0 {
			offer.HasItinerary = true
			for _, s := range d.Itineraries[0].Segments {
				offer.Segments = append(offer.Segments, prices.Segment{
					CarrierCode: s.CarrierCode,
					Departure:   parseAmadeusTime(s.Departure.At),
					Arrival:     parseAmadeusTime(s.Arrival.At),
				})
			}
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// parseAmadeusTime returns the zero time for missing or malformed values.
func parseAmadeusTime(s string) time.Time {
	ts, err := time.Parse(amadeusTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
