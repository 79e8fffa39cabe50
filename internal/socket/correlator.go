// internal/socket/correlator.go
package socket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sailscrape/internal/metrics"
	"sailscrape/internal/model"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed 는 Close 이후의 Exchange 호출에 반환된다.
var ErrClosed = errors.New("correlator closed")

// ConnectionError
// ------------------------------------------------------------
// exchange 도중 연결이 끊기거나 deadline 을 넘긴 경우의 에러.
// 요청은 자동으로 재시도하지 않는다. 호출자가 WorkUnit 을 중단한다.
type ConnectionError struct {
	Op  string // "dial" | "send" | "receive" | "exchange"
	Err error
}

func (e *ConnectionError) Error() string {
	return "socket " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Options 는 Correlator 설정.
type Options struct {
	Timeout time.Duration // exchange 1건의 deadline. 0 이면 DefaultTimeout
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

const DefaultTimeout = 30 * time.Second

// Correlator
// ------------------------------------------------------------
// 하나의 물리 연결을 여러 goroutine 이 함께 쓰도록 하는 요청/응답 primitive.
//
// backend 는 다중화(multiplexing)를 하지 않고, 응답에 requestId 를
// 신뢰성 있게 echo 하지도 않는다. 따라서 매칭은 클라이언트가 보장해야 한다:
//
//	acquire → send → receive → release
//
// 를 하나의 임계구역으로 묶어서, 어떤 send 와 그 응답 사이에
// 다른 호출자의 send/receive 가 끼어들 수 없게 한다.
//
// 임계구역은 크기 1 의 semaphore 채널이다 (sync.Mutex 대신).
// 대기 중인 호출자가 context 취소 시 바로 빠져나올 수 있어야 하기 때문.
type Correlator struct {
	dial    DialFunc
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
	tracer  trace.Tracer

	sem chan struct{}

	// 아래 필드는 sem 을 잡은 상태에서만 접근한다.
	conn   Conn
	closed bool
}

// NewCorrelator 는 연결을 즉시 열지 않는다. 첫 Exchange 에서 dial 한다.
func NewCorrelator(dial DialFunc, opts Options) *Correlator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Correlator{
		dial:    dial,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		log:     opts.Logger,
		tracer:  otel.Tracer("sailscrape/socket"),
		sem:     make(chan struct{}, 1),
	}
}

// Exchange 는 env 를 보내고 그에 대한 응답 하나를 받는다.
//
//   - 연결을 기다리는 동안 ctx 가 취소되면 ctx.Err() 를 반환한다 (아무것도 전송하지 않음).
//   - 일단 연결을 잡은 뒤의 I/O 는 ctx 취소와 분리되고 timeout 으로만 제한된다.
//     응답을 절반만 읽고 포기하면 다음 호출자가 남의 응답을 받게 되기 때문.
//   - send/receive 실패나 timeout 이면 연결을 닫고 *ConnectionError 를 반환한다.
//     다음 Exchange 는 새 연결을 연다.
func (c *Correlator) Exchange(ctx context.Context, env model.RequestEnvelope) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "socket.exchange", trace.WithAttributes(
		attribute.String("request.id", env.ID),
		attribute.String("action", string(env.Action)),
		attribute.String("sail_code", string(env.SailCode)),
		attribute.String("fare_code", string(env.FareCode)),
		attribute.String("occupancy", env.Occupancy.String()),
		attribute.String("category", string(env.Category)),
	))
	defer span.End()

	msg, err := EncodeEnvelope(env)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	// select 는 양쪽이 준비되면 임의로 고르므로 한 번 더 확인
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed {
		return nil, &ConnectionError{Op: "exchange", Err: ErrClosed}
	}

	atomic.AddInt64(&c.metrics.ExchangesTotal, 1)

	ioCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if c.conn == nil {
		conn, err := c.dial(ioCtx)
		if err != nil {
			return nil, c.fail(span, "dial", err)
		}
		atomic.AddInt64(&c.metrics.DialsTotal, 1)
		c.conn = conn
	}

	if err := c.conn.Send(ioCtx, msg); err != nil {
		return nil, c.fail(span, "send", err)
	}

	resp, err := c.conn.Receive(ioCtx)
	if err != nil {
		return nil, c.fail(span, "receive", err)
	}

	span.SetAttributes(attribute.Int("response.bytes", len(resp)))
	return resp, nil
}

// fail 은 sem 을 잡은 상태에서만 호출된다.
// 스트림 동기화를 더 이상 믿을 수 없으므로 연결을 버린다.
func (c *Correlator) fail(span trace.Span, op string, err error) error {
	atomic.AddInt64(&c.metrics.ExchangeErrorsTotal, 1)

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	cerr := &ConnectionError{Op: op, Err: err}
	span.RecordError(cerr)
	span.SetStatus(codes.Error, op+" failed")
	c.log.Warn().Err(err).Str("op", op).Msg("socket exchange failed, connection dropped")
	return cerr
}

// Close 는 진행 중인 exchange 가 끝나기를 기다린 뒤 연결을 닫는다.
// 이후 Exchange 는 ErrClosed 를 반환한다. 여러 번 호출해도 안전하다.
func (c *Correlator) Close() error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
