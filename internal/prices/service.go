package prices

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Plan is the driver-supplied list of queries for one sweep.
type Plan struct {
	Routes []RoutePlan
}

// RoutePlan holds the point queries and calendar sweeps for one route.
type RoutePlan struct {
	Route     Route
	Points    []Query
	Calendars []CalendarRequest
}

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	MaxSeriesLen     int
	MaxResults       int
	RouteConcurrency int
	Exporters        []Exporter
	// Now is overridable for tests.
	Now func() time.Time
}

// Service orchestrates sweeps: fetching, merging and persisting, and keeps
// the latest merged state for readers.
type Service struct {
	repo    Repository
	fetcher Fetcher
	opts    ServiceOptions

	runMu sync.Mutex

	mu      sync.RWMutex
	loaded  bool
	series  TimeSeries
	buckets BucketStore
	lastRun *RunReport
}

// NewService creates a new Service.
func NewService(repo Repository, fetcher Fetcher, opts ServiceOptions) *Service {
	if opts.MaxSeriesLen <= 0 {
		opts.MaxSeriesLen = DefaultMaxSeriesLen
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if opts.RouteConcurrency <= 0 {
		opts.RouteConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		opts:    opts,
	}
}

type routeResult struct {
	snapshots []PriceSnapshot
	calendars []CalendarResult
	failed    int
}

// RunSweep executes one full pass over plan. Only an authentication failure
// aborts the sweep; individual query failures are counted and skipped.
func (s *Service) RunSweep(ctx context.Context, plan Plan) (RunReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := RunReport{
		ID:        uuid.NewString(),
		StartedAt: s.opts.Now().UTC(),
		Routes:    len(plan.Routes),
	}
	log.Printf("INFO: sweep %s starting with provider %s for %d routes", report.ID, s.fetcher.Name(), len(plan.Routes))

	if err := s.fetcher.Authenticate(ctx); err != nil {
		return report, fmt.Errorf("sweep %s: %w", report.ID, err)
	}

	series := s.repo.LoadSeries()
	buckets := s.repo.LoadBuckets()

	results := make([]routeResult, len(plan.Routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.RouteConcurrency)
	for i, rp := range plan.Routes {
		i, rp := i, rp
		g.Go(func() error {
			results[i] = s.fetchRoute(gctx, rp)
			return nil
		})
	}
	_ = g.Wait()

	// Merge in plan order so appends are deterministic whatever the fan-out.
	var newRows []PriceSnapshot
	for i, rp := range plan.Routes {
		r := results[i]
		newRows = append(newRows, r.snapshots...)
		report.FailedQueries += r.failed
		for _, cal := range r.calendars {
			report.CalendarDates += cal.Sampled
			report.PricedDates += len(cal.Cheapest)
			report.FailedQueries += cal.Failed
			for year, byYear := range SplitByYear(cal.Cheapest) {
				buckets = MergeBuckets(buckets, rp.Route.Key(), year, byYear)
			}
		}
		report.PointQueries += len(rp.Points)
	}
	report.Snapshots = len(newRows)
	series = MergeSeries(series, newRows, s.opts.MaxSeriesLen)
	report.SeriesLen = len(series)

	var saveErr error
	if err := s.repo.SaveSeries(series); err != nil {
		saveErr = fmt.Errorf("save series: %w", err)
	}
	if err := s.repo.SaveBuckets(buckets); err != nil {
		saveErr = errors.Join(saveErr, fmt.Errorf("save buckets: %w", err))
	}

	for _, e := range s.opts.Exporters {
		if err := e.Export(series); err != nil {
			log.Printf("WARN: %s export failed: %v", e.Name(), err)
		}
	}

	report.FinishedAt = s.opts.Now().UTC()

	s.mu.Lock()
	s.series = series
	s.buckets = buckets
	s.loaded = true
	s.lastRun = &report
	s.mu.Unlock()

	log.Printf("INFO: sweep %s done: %d snapshots, %d/%d calendar dates priced, %d failed queries, series length %d",
		report.ID, report.Snapshots, report.PricedDates, report.CalendarDates, report.FailedQueries, report.SeriesLen)

	if saveErr != nil {
		return report, saveErr
	}
	return report, ctx.Err()
}

func (s *Service) fetchRoute(ctx context.Context, rp RoutePlan) routeResult {
	var res routeResult

	for _, q := range rp.Points {
		if ctx.Err() != nil {
			return res
		}
		offers, err := s.fetcher.Search(ctx, q, s.opts.MaxResults)
		if err != nil {
			log.Printf("WARN: %s search %s %s failed: %v", s.fetcher.Name(), q.Key(), q.DepartureDate, err)
			res.failed++
			continue
		}
		best, ok := cheapestOffer(offers)
		if !ok {
			log.Printf("DEBUG: no offers for %s on %s", q.Key(), q.DepartureDate)
			continue
		}
		fetchedAt := s.opts.Now().UTC()
		res.snapshots = append(res.snapshots, Extract(best, q, fetchedAt, NewDate(fetchedAt)))
	}

	for _, req := range rp.Calendars {
		if req.MaxResults == 0 {
			req.MaxResults = s.opts.MaxResults
		}
		cal, err := CalendarCheapest(ctx, s.fetcher, req)
		if err != nil {
			log.Printf("WARN: calendar sweep %s failed: %v", rp.Route.Key(), err)
		}
		if cal.Cheapest != nil {
			res.calendars = append(res.calendars, cal)
		}
	}
	return res
}

func (s *Service) ensureLoaded() {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}

	series := s.repo.LoadSeries()
	buckets := s.repo.LoadBuckets()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.series = series
		s.buckets = buckets
		s.loaded = true
	}
}

// Series returns the persisted snapshots matching f.
func (s *Service) Series(f SeriesFilter) TimeSeries {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series.Filter(f)
}

// Buckets returns a copy of the bucket matrix for a route key and year.
func (s *Service) Buckets(routeKey, year string) (BucketMatrix, bool) {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.buckets.Lookup(routeKey, year)
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// LastRun returns the report of the most recent sweep, if any.
func (s *Service) LastRun() (RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return RunReport{}, false
	}
	return *s.lastRun, true
}
