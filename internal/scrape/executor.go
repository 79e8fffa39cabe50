// internal/scrape/executor.go
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"sailscrape/internal/metrics"
	"sailscrape/internal/model"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Exchanger 는 요청 하나를 보내고 응답 하나를 받는다 (socket.Correlator).
type Exchanger interface {
	Exchange(ctx context.Context, env model.RequestEnvelope) ([]byte, error)
}

// DefaultWorkers 는 unit 하나의 동시 요청 수 기본값.
const DefaultWorkers = 10

type ExecutorOptions struct {
	Workers int
	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// NewID 는 requestId 생성기. nil 이면 uuid v4.
	NewID func() string
}

// Executor
// ------------------------------------------------------------
// WorkUnit 하나를 요청 envelope 들로 펼쳐서 병렬로 실행하고,
// Keep 응답만 줄바꿈으로 이어붙인 aggregate 를 만든다.
//
//   - 동시성은 Workers 로 제한 (errgroup.SetLimit)
//   - Failed 응답이나 연결 오류가 하나라도 나오면 나머지 요청은 시작하지 않고
//     unit 전체를 실패 처리한다 (부분 결과는 버린다)
//   - aggregate 의 줄 순서는 응답 완료 순서라서 보장되지 않는다
type Executor struct {
	ex      Exchanger
	workers int
	metrics *metrics.Metrics
	log     zerolog.Logger
	newID   func() string
	tracer  trace.Tracer
}

func NewExecutor(ex Exchanger, opts ExecutorOptions) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Executor{
		ex:      ex,
		workers: opts.Workers,
		metrics: opts.Metrics,
		log:     opts.Logger,
		newID:   opts.NewID,
		tracer:  otel.Tracer("sailscrape/scrape"),
	}
}

// Envelopes 는 unit 을 요청 목록으로 펼친다.
//
//   - prices-v2:        PriceOccupancies() 각각 1건
//   - available-suites: (1,0) 고정, category 각각 1건
//
// category 목록이 비어 있는 availability unit 은 category 없이 1건을 보낸다.
func (e *Executor) Envelopes(unit model.WorkUnit) []model.RequestEnvelope {
	base := model.RequestEnvelope{
		Action:   unit.Action,
		SailCode: unit.SailCode,
		FareCode: unit.FareCode,
		Currency: unit.Currency,
	}

	var out []model.RequestEnvelope
	switch unit.Action {
	case model.ActionPrices:
		for _, occ := range PriceOccupancies() {
			env := base
			env.ID = e.newID()
			env.Occupancy = occ
			out = append(out, env)
		}

	case model.ActionAvailability:
		cats := dedupCategories(unit.Categories)
		if len(cats) == 0 {
			cats = []model.CabinCategory{""}
		}
		for _, cat := range cats {
			env := base
			env.ID = e.newID()
			env.Occupancy = AvailabilityOccupancy
			env.Category = cat
			out = append(out, env)
		}
	}
	return out
}

// Run
// ------------------------------------------------------------
// unit 을 실행한다.
//
//   - 반환 payload 가 비어 있으면 모든 응답이 Suppressed 였다는 뜻 (landing 생략)
//   - 에러가 있으면 payload 는 항상 nil
func (e *Executor) Run(ctx context.Context, unit model.WorkUnit) ([]byte, error) {
	if err := ValidateUnit(unit); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "scrape.unit", trace.WithAttributes(
		attribute.String("action", string(unit.Action)),
		attribute.String("sail_code", string(unit.SailCode)),
		attribute.String("fare_code", string(unit.FareCode)),
		attribute.String("currency", unit.Currency),
	))
	defer span.End()

	log := e.log.With().
		Str("action", string(unit.Action)).
		Str("sail_code", string(unit.SailCode)).
		Str("fare_code", string(unit.FareCode)).
		Logger()

	envs := e.Envelopes(unit)
	span.SetAttributes(attribute.Int("requests", len(envs)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var (
		mu   sync.Mutex
		agg  bytes.Buffer
		kept int
	)

	for _, env := range envs {
		// 이미 실패한 unit 이면 남은 요청은 보내지 않는다
		if gctx.Err() != nil {
			break
		}
		env := env
		g.Go(func() error {
			raw, err := e.ex.Exchange(gctx, env)
			if err != nil {
				return fmt.Errorf("exchange %s %s: %w", env.Occupancy, env.Category, err)
			}

			c := Classify(env.Action, raw)
			switch c.Verdict {
			case Keep:
				atomic.AddInt64(&e.metrics.ResponsesKeptTotal, 1)
				mu.Lock()
				err := appendLine(&agg, c.Payload)
				kept++
				mu.Unlock()
				return err

			case Suppressed:
				atomic.AddInt64(&e.metrics.ResponsesSuppressedTotal, 1)
				log.Debug().
					Str("occupancy", env.Occupancy.String()).
					Str("category", string(env.Category)).
					Str("reason", c.Reason).
					Msg("response suppressed")
				return nil

			default:
				atomic.AddInt64(&e.metrics.ResponsesFailedTotal, 1)
				return c.Err
			}
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unit failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("responses.kept", kept))
	log.Debug().Int("requests", len(envs)).Int("kept", kept).Msg("unit finished")

	if kept == 0 {
		return nil, nil
	}
	return agg.Bytes(), nil
}

// appendLine 은 payload 를 한 줄로 붙인다.
// 응답이 여러 줄 JSON 이면 aggregate 의 줄 구분이 깨지므로 compact 한다.
func appendLine(buf *bytes.Buffer, payload []byte) error {
	if bytes.ContainsAny(payload, "\r\n") {
		if err := json.Compact(buf, payload); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		buf.Write(payload)
	}
	buf.WriteByte('\n')
	return nil
}

func dedupCategories(in []model.CabinCategory) []model.CabinCategory {
	seen := make(map[model.CabinCategory]struct{}, len(in))
	out := make([]model.CabinCategory, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
