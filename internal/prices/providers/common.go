package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultRetry is the attempt budget for authentication and search.
const DefaultRetry = 3

// RetryPolicy decides how often and how long to wait between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
	// Sleep waits for d or until ctx is done. Overridable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client *http.Client
	Retry  RetryPolicy
}

// StatusError reports a non-200 upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

var (
	errRetriesExhausted = errors.New("retries exhausted")
	errCircuitOpen      = errors.New("circuit breaker open")
	errNoHTTPClient     = errors.New("http client not configured")
	errInvalidConfig    = errors.New("invalid retry configuration")
)

// LinearBackoff waits 1s after the first failed attempt, 2s after the second
// and so on.
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(1+attempt) * time.Second
}

// IsTransientStatus reports whether an upstream status is worth retrying.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryTransientStatus retries only rate limiting and server errors. Transport
// errors and other statuses are treated as permanent for the query.
func retryTransientStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && IsTransientStatus(se.Code)
}

// retrySearch retries transient statuses and an open breaker.
func retrySearch(err error) bool {
	return retryTransientStatus(err) || errors.Is(err, errCircuitOpen)
}

// retryAny retries every failure except an open breaker.
func retryAny(err error) bool {
	return !errors.Is(err, errCircuitOpen)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newRetryPolicy(attempts int, retryable func(error) bool) RetryPolicy {
	if attempts <= 0 {
		attempts = DefaultRetry
	}
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     LinearBackoff,
		Retryable:   retryable,
		Sleep:       sleepContext,
	}
}

// The trip threshold sits well above one query's attempt budget and the
// cooldown is on the order of the retry backoff.
const (
	breakerTripAfter = 30
	breakerCooldown  = 3 * time.Second
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		// Bad queries say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || !retryTransientStatus(err)
		},
	})
}

// newLimiter spaces searches at least pace apart. A non-positive pace
// disables pacing.
func newLimiter(pace time.Duration) *rate.Limiter {
	if pace <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(pace), 1)
}

// doRequestWithResilience executes the request built by buildRequest under
// the retry policy, optionally through a circuit breaker. It returns the
// response only for HTTP 200; the caller must close its body.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	policy := cfg.Retry
	if policy.MaxAttempts <= 0 || policy.Backoff == nil || policy.Retryable == nil {
		return nil, errInvalidConfig
	}
	if policy.Sleep == nil {
		policy.Sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, err := attemptOnce(ctx, cfg.Client, cb, buildRequest)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !policy.Retryable(err) {
			return nil, err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if err := policy.Sleep(ctx, policy.Backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", errRetriesExhausted, policy.MaxAttempts, lastErr)
}

func attemptOnce(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	req, err := buildRequest()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	do := func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	}

	if cb == nil {
		result, err := do()
		if err != nil {
			return nil, err
		}
		return result.(*http.Response), nil
	}

	result, err := cb.Execute(do)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}
	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
