package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

type fakeSweeper struct {
	plans  []prices.Plan
	ctxErr error
	err    error
}

func (f *fakeSweeper) RunSweep(ctx context.Context, plan prices.Plan) (prices.RunReport, error) {
	f.plans = append(f.plans, plan)
	f.ctxErr = ctx.Err()
	return prices.RunReport{ID: "run-1"}, f.err
}

func TestRunBuildsFreshPlan(t *testing.T) {
	sw := &fakeSweeper{}
	var planned []time.Time
	s := New("0 6,18 * * *", sw, func(today time.Time) prices.Plan {
		planned = append(planned, today)
		return prices.Plan{Routes: []prices.RoutePlan{{Route: prices.Route{Origin: "AMS", Destination: "LIS"}}}}
	})

	s.run()
	sw.err = errors.New("upstream down")
	s.run()

	require.Len(t, sw.plans, 2)
	assert.Len(t, planned, 2)
	assert.NoError(t, sw.ctxErr)
	assert.Equal(t, time.UTC, planned[0].Location())
}

func TestSweepsRunUnderStartContext(t *testing.T) {
	sw := &fakeSweeper{}
	s := New("0 6,18 * * *", sw, func(time.Time) prices.Plan { return prices.Plan{} })
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	cancel()
	s.run()

	assert.ErrorIs(t, sw.ctxErr, context.Canceled)
}

func TestStartRejectsBadCron(t *testing.T) {
	s := New("every now and then", &fakeSweeper{}, func(time.Time) prices.Plan { return prices.Plan{} })
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}
