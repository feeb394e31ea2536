package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

// Sweeper runs one sweep over a plan.
type Sweeper interface {
	RunSweep(ctx context.Context, plan prices.Plan) (prices.RunReport, error)
}

// Scheduler periodically sweeps the configured routes.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Sweeper
	planFor   func(today time.Time) prices.Plan
	cronExpr  string
	ctx       context.Context
}

// New creates a new Scheduler. planFor builds the plan at the start of each
// run.
func New(cronExpr string, service Sweeper, planFor func(today time.Time) prices.Plan) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		planFor:   planFor,
		cronExpr:  cronExpr,
		ctx:       context.Background(),
	}
}

// Start schedules the sweep job and starts the underlying scheduler. Sweeps
// run under ctx, so cancelling it aborts an in-flight sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	_, err := s.scheduler.Cron(s.cronExpr).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("scheduler: sweeps scheduled with %q (UTC)", s.cronExpr)
	return nil
}

func (s *Scheduler) run() {
	log.Println("scheduler: running price sweep job")

	report, err := s.service.RunSweep(s.ctx, s.planFor(time.Now().UTC()))
	if err != nil {
		log.Printf("ERROR: scheduler: sweep %s failed: %v", report.ID, err)
		return
	}
	log.Printf("scheduler: completed price sweep job %s", report.ID)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
