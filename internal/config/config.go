package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

const (
	ProviderAmadeus = "amadeus"
	ProviderTequila = "tequila"

	BackendFile   = "file"
	BackendMemory = "memory"

	RunModeOnce  = "once"
	RunModeServe = "serve"
)

type AppConfig struct {
	Provider string

	AmadeusBaseURL      string
	AmadeusClientID     string
	AmadeusClientSecret string

	TequilaBaseURL string
	TequilaAPIKey  string

	// Routes to track.
	Routes   []prices.Route
	Currency string

	DaysAhead        int // point queries for tomorrow .. tomorrow+DaysAhead-1
	TripLengthDays   int
	CalendarMonths   int // calendar window covers the current month plus CalendarMonths-1
	CalendarStepDays int
	MaxResults       int

	Retry            int
	SearchPace       time.Duration
	HTTPTimeout      time.Duration
	RouteConcurrency int

	MaxSeriesLen int
	StoreBackend string
	SeriesPath   string
	BucketsPath  string

	ExportCSVPath     string
	ExportParquetPath string

	RunMode  string
	Schedule string
	Port     string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Provider = strings.ToLower(getenvDefault("PROVIDER", ProviderAmadeus))
	cfg.AmadeusBaseURL = getenvDefault("AMADEUS_BASE_URL", "https://test.api.amadeus.com")
	cfg.AmadeusClientID = strings.TrimSpace(os.Getenv("AMADEUS_CLIENT_ID"))
	cfg.AmadeusClientSecret = strings.TrimSpace(os.Getenv("AMADEUS_CLIENT_SECRET"))
	cfg.TequilaBaseURL = getenvDefault("TEQUILA_BASE_URL", "https://tequila-api.kiwi.com")
	cfg.TequilaAPIKey = strings.TrimSpace(getenvDefault("TEQUILA_API_KEY", os.Getenv("KIWI_API_KEY")))

	cfg.Routes = ParseRoutes(getenvDefault("ROUTES", "AMS:BCN"))
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("no routes provided (ROUTES is empty or malformed)")
	}
	cfg.Currency = strings.ToUpper(getenvDefault("CURRENCY", "EUR"))

	cfg.DaysAhead = getenvInt("DAYS_AHEAD", 14)
	cfg.TripLengthDays = getenvInt("TRIP_LENGTH_DAYS", 7)
	cfg.CalendarMonths = getenvInt("CALENDAR_MONTHS", 2)
	cfg.CalendarStepDays = getenvInt("CALENDAR_STEP_DAYS", 2)
	cfg.MaxResults = getenvInt("MAX_RESULTS", 20)
	if cfg.CalendarStepDays <= 0 {
		return nil, fmt.Errorf("invalid CALENDAR_STEP_DAYS: %d", cfg.CalendarStepDays)
	}

	cfg.Retry = getenvInt("RETRY", 3)
	var err error
	if cfg.SearchPace, err = getenvDuration("SEARCH_PACE", "200ms"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	cfg.RouteConcurrency = getenvInt("ROUTE_CONCURRENCY", 1)

	cfg.MaxSeriesLen = getenvInt("MAX_SERIES_LEN", prices.DefaultMaxSeriesLen)
	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", BackendFile))
	cfg.SeriesPath = getenvDefault("SERIES_PATH", "data/price_series.json")
	cfg.BucketsPath = getenvDefault("BUCKETS_PATH", "data/monthly_buckets.json")
	cfg.ExportCSVPath = os.Getenv("EXPORT_CSV_PATH")
	cfg.ExportParquetPath = os.Getenv("EXPORT_PARQUET_PATH")

	cfg.RunMode = strings.ToLower(getenvDefault("RUN_MODE", RunModeOnce))
	cfg.Schedule = getenvDefault("SCHEDULE", "0 6,18 * * *")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Provider {
	case ProviderAmadeus, ProviderTequila:
	default:
		return fmt.Errorf("unknown PROVIDER %q", c.Provider)
	}
	switch c.StoreBackend {
	case BackendFile, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.RunMode {
	case RunModeOnce, RunModeServe:
	default:
		return fmt.Errorf("unknown RUN_MODE %q", c.RunMode)
	}
	if c.MaxSeriesLen <= 0 {
		return fmt.Errorf("MAX_SERIES_LEN must be positive, got %d", c.MaxSeriesLen)
	}
	return nil
}

// ParseRoutes parses "AMS:BCN, ams:lis" into routes, skipping malformed chunks.
func ParseRoutes(s string) []prices.Route {
	var routes []prices.Route
	for _, chunk := range strings.Split(s, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		orig, dest, ok := strings.Cut(chunk, ":")
		orig, dest = strings.ToUpper(strings.TrimSpace(orig)), strings.ToUpper(strings.TrimSpace(dest))
		if !ok || orig == "" || dest == "" {
			log.Printf("WARN: skipping malformed route %q", chunk)
			continue
		}
		routes = append(routes, prices.Route{Origin: orig, Destination: dest})
	}
	return routes
}

// Plan builds the query plan for a sweep observed on today: point queries for
// the next DaysAhead departure dates and one calendar sweep per covered month.
func (c *AppConfig) Plan(today time.Time) prices.Plan {
	day := prices.NewDate(today)
	monthStart := prices.NewDate(time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC))

	plan := prices.Plan{}
	for _, r := range c.Routes {
		rp := prices.RoutePlan{Route: r}

		for i := 1; i <= c.DaysAhead; i++ {
			out := day.AddDays(i)
			rp.Points = append(rp.Points, prices.Query{
				Route:         r,
				DepartureDate: out,
				ReturnDate:    out.AddDays(c.TripLengthDays),
				Currency:      c.Currency,
			})
		}

		for m := 0; m < c.CalendarMonths; m++ {
			start := prices.Date{Time: monthStart.AddDate(0, m, 0)}
			end := prices.Date{Time: start.AddDate(0, 1, -1)}
			if start.Before(day.Time) {
				start = day
			}
			rp.Calendars = append(rp.Calendars, prices.CalendarRequest{
				Route:      r,
				Year:       start.Year(),
				Start:      start,
				End:        end,
				Step:       c.CalendarStepDays,
				TripLength: c.TripLengthDays,
				Currency:   c.Currency,
				MaxResults: c.MaxResults,
			})
		}

		plan.Routes = append(plan.Routes, rp)
	}
	return plan
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
