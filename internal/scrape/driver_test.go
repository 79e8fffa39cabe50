package scrape

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sailscrape/internal/metrics"
	"sailscrape/internal/model"
)

type runnerFunc func(ctx context.Context, unit model.WorkUnit) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, unit model.WorkUnit) ([]byte, error) {
	return f(ctx, unit)
}

type memSink struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (s *memSink) Put(ctx context.Context, path string, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objs == nil {
		s.objs = map[string][]byte{}
	}
	s.objs[path] = payload
	return nil
}

func TestPlanPrices(t *testing.T) {
	entries := []model.CatalogEntry{
		{SailCode: "SD2501", FareCodes: []model.FareCode{"Essential", "DoorToDoor"}},
		{SailCode: "MO2502", FareCodes: []model.FareCode{"Essential"}},
		{SailCode: "SD2501", FareCodes: []model.FareCode{"Essential"}},
	}
	units := PlanPrices(entries, "US")

	require.Len(t, units, 3)
	assert.Equal(t, "SD2501/prices-v2/US/Essential", LandingPath(units[0]))
	assert.Equal(t, "SD2501/prices-v2/US/DoorToDoor", LandingPath(units[1]))
	assert.Equal(t, "MO2502/prices-v2/US/Essential", LandingPath(units[2]))
	for _, u := range units {
		assert.Equal(t, model.ActionPrices, u.Action)
		assert.Empty(t, u.Categories)
	}
}

func TestPlanAvailability(t *testing.T) {
	entries := []model.CatalogEntry{
		{SailCode: "SD2501", FareCodes: []model.FareCode{"Essential"}},
		{SailCode: "XX2501", FareCodes: []model.FareCode{"Essential"}},
		{SailCode: "SD2501", FareCodes: []model.FareCode{"DoorToDoor", "Essential"}},
	}
	cats := map[model.ShipCode][]model.CabinCategory{
		"SD": {"VI", "SI", "GR"},
	}

	units := PlanAvailability(entries, cats, "US")

	// 3 category × 2 fare code → unit 2개, 각 unit 요청 3건
	require.Len(t, units, 2)
	assert.Equal(t, model.FareCode("Essential"), units[0].FareCode)
	assert.Equal(t, model.FareCode("DoorToDoor"), units[1].FareCode)
	for _, u := range units {
		assert.Equal(t, model.SailCode("SD2501"), u.SailCode)
		assert.Equal(t, model.ActionAvailability, u.Action)
		assert.Equal(t, []model.CabinCategory{"VI", "SI", "GR"}, u.Categories)
	}

	e := NewExecutor(nil, ExecutorOptions{Logger: zerolog.Nop()})
	assert.Len(t, e.Envelopes(units[0]), 3)
}

func TestDriver_landsNonEmptyAggregates(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, u model.WorkUnit) ([]byte, error) {
		switch u.FareCode {
		case "Empty":
			return nil, nil
		case "Broken":
			return nil, ErrBadRequest
		}
		return []byte(`{"ok":true}` + "\n"), nil
	})
	sink := &memSink{}
	m := metrics.New()
	d := NewDriver(runner, sink, DriverOptions{Currency: "US", Metrics: m, Logger: zerolog.Nop()})

	rep, err := d.ScrapePrices(context.Background(), []model.CatalogEntry{
		{SailCode: "SD2501", FareCodes: []model.FareCode{"Essential", "Empty", "Broken", "DoorToDoor"}},
	})
	require.NoError(t, err)

	assert.Equal(t, Report{Units: 4, Landed: 2, Empty: 1, Failed: 1}, rep)
	assert.Len(t, sink.objs, 2)
	assert.Contains(t, sink.objs, "SD2501/prices-v2/US/Essential")
	assert.Contains(t, sink.objs, "SD2501/prices-v2/US/DoorToDoor")

	assert.Equal(t, int64(4), atomic.LoadInt64(&m.UnitsTotal))
	assert.Equal(t, int64(2), atomic.LoadInt64(&m.UnitsLandedTotal))
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.UnitsEmptyTotal))
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.UnitsFailedTotal))
	assert.Equal(t, int64(24), atomic.LoadInt64(&m.LandedBytesTotal))
}

func TestDriver_landingErrorDoesNotStopRun(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, u model.WorkUnit) ([]byte, error) {
		return []byte("{}\n"), nil
	})
	sink := &memSink{err: errors.New("access denied")}
	m := metrics.New()
	d := NewDriver(runner, sink, DriverOptions{Metrics: m, Logger: zerolog.Nop()})

	rep, err := d.ScrapeAvailability(context.Background(),
		[]model.CatalogEntry{
			{SailCode: "SD2501", FareCodes: []model.FareCode{"Essential", "DoorToDoor"}},
		},
		map[model.ShipCode][]model.CabinCategory{"SD": {"VI"}},
	)
	require.NoError(t, err)
	assert.Equal(t, Report{Units: 2, LandingErrors: 2}, rep)
	assert.Equal(t, int64(2), atomic.LoadInt64(&m.LandingErrorsTotal))
}

func TestDriver_cancelStopsRemainingUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int
	runner := runnerFunc(func(ctx context.Context, u model.WorkUnit) ([]byte, error) {
		runs++
		cancel()
		return []byte("{}\n"), nil
	})
	d := NewDriver(runner, &memSink{}, DriverOptions{Logger: zerolog.Nop()})

	rep, err := d.ScrapePrices(ctx, []model.CatalogEntry{
		{SailCode: "SD2501", FareCodes: []model.FareCode{"A", "B", "C"}},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, rep.Units)
}
