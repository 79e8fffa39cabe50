// internal/scrape/driver.go
package scrape

import (
	"context"
	"sync/atomic"

	"sailscrape/internal/metrics"
	"sailscrape/internal/model"

	"github.com/rs/zerolog"
)

// Runner 는 WorkUnit 하나를 실행한다 (Executor).
type Runner interface {
	Run(ctx context.Context, unit model.WorkUnit) ([]byte, error)
}

// Sink 는 aggregate 를 landing 경로에 저장한다 (landing.Store).
type Sink interface {
	Put(ctx context.Context, path string, payload []byte) error
}

// Report 는 한 번의 scrape 결과 요약.
type Report struct {
	Units         int `json:"units"`
	Landed        int `json:"landed"`
	Empty         int `json:"empty"`
	Failed        int `json:"failed"`
	LandingErrors int `json:"landingErrors"`
}

func (r *Report) add(o Report) {
	r.Units += o.Units
	r.Landed += o.Landed
	r.Empty += o.Empty
	r.Failed += o.Failed
	r.LandingErrors += o.LandingErrors
}

type DriverOptions struct {
	Currency string
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Driver
// ------------------------------------------------------------
// catalog 로부터 WorkUnit 목록을 만들고 순서대로 실행한 뒤,
// 비어 있지 않은 aggregate 만 sink 로 보낸다.
//
// unit 은 하나씩 순차 실행한다. unit 안의 요청만 Executor 가 병렬화한다.
// unit 하나의 실패는 다음 unit 진행을 막지 않는다.
type Driver struct {
	runner   Runner
	sink     Sink
	currency string
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewDriver(runner Runner, sink Sink, opts DriverOptions) *Driver {
	if opts.Currency == "" {
		opts.Currency = "US"
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Driver{
		runner:   runner,
		sink:     sink,
		currency: opts.Currency,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
}

// ScrapePrices 는 catalog entry × fare code 마다 prices-v2 unit 을 실행한다.
func (d *Driver) ScrapePrices(ctx context.Context, entries []model.CatalogEntry) (Report, error) {
	units := PlanPrices(entries, d.currency)
	d.log.Info().Int("units", len(units)).Msg("price scrape planned")
	return d.Execute(ctx, units)
}

// ScrapeAvailability 는 sail code × fare code 마다 available-suites unit 을 실행한다.
// categories 는 ship code 별 cabin category (refdata.Snapshot 결과).
func (d *Driver) ScrapeAvailability(
	ctx context.Context,
	entries []model.CatalogEntry,
	categories map[model.ShipCode][]model.CabinCategory,
) (Report, error) {
	units := PlanAvailability(entries, categories, d.currency)
	d.log.Info().Int("units", len(units)).Msg("availability scrape planned")
	return d.Execute(ctx, units)
}

// Execute 는 units 를 순서대로 실행한다.
// ctx 가 취소되면 남은 unit 을 건너뛰고 지금까지의 Report 와 ctx.Err() 를 반환한다.
func (d *Driver) Execute(ctx context.Context, units []model.WorkUnit) (Report, error) {
	var rep Report
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			d.log.Warn().Int("done", i).Int("total", len(units)).Msg("scrape interrupted")
			return rep, err
		}
		d.log.Info().
			Int("index", i+1).
			Int("total", len(units)).
			Str("sail_code", string(unit.SailCode)).
			Str("fare_code", string(unit.FareCode)).
			Msg("unit started")

		rep.add(d.process(ctx, unit))
	}
	d.log.Info().
		Int("units", rep.Units).
		Int("landed", rep.Landed).
		Int("empty", rep.Empty).
		Int("failed", rep.Failed).
		Int("landing_errors", rep.LandingErrors).
		Msg("scrape finished")
	return rep, nil
}

func (d *Driver) process(ctx context.Context, unit model.WorkUnit) Report {
	atomic.AddInt64(&d.metrics.UnitsTotal, 1)
	rep := Report{Units: 1}

	log := d.log.With().
		Str("action", string(unit.Action)).
		Str("sail_code", string(unit.SailCode)).
		Str("fare_code", string(unit.FareCode)).
		Logger()

	payload, err := d.runner.Run(ctx, unit)
	if err != nil {
		atomic.AddInt64(&d.metrics.UnitsFailedTotal, 1)
		log.Error().Err(err).Msg("unit failed")
		rep.Failed = 1
		return rep
	}

	if len(payload) == 0 {
		atomic.AddInt64(&d.metrics.UnitsEmptyTotal, 1)
		log.Warn().Msg("no data was recorded")
		rep.Empty = 1
		return rep
	}

	path := LandingPath(unit)
	if err := d.sink.Put(ctx, path, payload); err != nil {
		atomic.AddInt64(&d.metrics.LandingErrorsTotal, 1)
		log.Error().Err(err).Str("path", path).Int("bytes", len(payload)).Msg("landing failed, aggregate dropped")
		rep.LandingErrors = 1
		return rep
	}

	atomic.AddInt64(&d.metrics.UnitsLandedTotal, 1)
	atomic.AddInt64(&d.metrics.LandedBytesTotal, int64(len(payload)))
	log.Info().Str("path", path).Int("bytes", len(payload)).Msg("unit landed")
	rep.Landed = 1
	return rep
}

// PlanPrices 는 entry 순서, fare code 순서대로 unit 을 만든다.
// 같은 (sail code, fare code) 는 한 번만 만든다.
func PlanPrices(entries []model.CatalogEntry, currency string) []model.WorkUnit {
	type key struct {
		sail model.SailCode
		fare model.FareCode
	}
	seen := make(map[key]struct{})

	var units []model.WorkUnit
	for _, e := range entries {
		for _, f := range e.FareCodes {
			k := key{e.SailCode, f}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			units = append(units, model.WorkUnit{
				Action:   model.ActionPrices,
				SailCode: e.SailCode,
				FareCode: f,
				Currency: currency,
			})
		}
	}
	return units
}

// PlanAvailability
// ------------------------------------------------------------
// sail code 별로 fare code 합집합 × ship 의 cabin category 를 묶는다.
//
//   - sail code 순서는 catalog 에 처음 나온 순서
//   - ship 에 category 가 없는 sail code 는 제외 (inner join)
//   - unit 하나 = (sail code, fare code), Categories = 그 ship 의 category 전부
func PlanAvailability(
	entries []model.CatalogEntry,
	categories map[model.ShipCode][]model.CabinCategory,
	currency string,
) []model.WorkUnit {
	var order []model.SailCode
	fares := make(map[model.SailCode][]model.FareCode)
	seenFare := make(map[model.SailCode]map[model.FareCode]struct{})

	for _, e := range entries {
		if _, ok := seenFare[e.SailCode]; !ok {
			seenFare[e.SailCode] = make(map[model.FareCode]struct{})
			order = append(order, e.SailCode)
		}
		for _, f := range e.FareCodes {
			if _, ok := seenFare[e.SailCode][f]; ok {
				continue
			}
			seenFare[e.SailCode][f] = struct{}{}
			fares[e.SailCode] = append(fares[e.SailCode], f)
		}
	}

	var units []model.WorkUnit
	for _, sail := range order {
		cats := dedupCategories(categories[sail.ShipCode()])
		if len(cats) == 0 {
			continue
		}
		for _, f := range fares[sail] {
			units = append(units, model.WorkUnit{
				Action:     model.ActionAvailability,
				SailCode:   sail,
				FareCode:   f,
				Currency:   currency,
				Categories: cats,
			})
		}
	}
	return units
}
