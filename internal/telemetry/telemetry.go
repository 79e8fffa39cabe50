package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Telemetry 는 설치된 tracer provider. endpoint 가 없으면 provider 는 nil 이고
// otel 전역 provider 는 기본 no-op 그대로 둔다.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
}

// Shutdown 은 남은 span 을 flush 한다.
func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	return t.TracerProvider.Shutdown(ctx)
}

// Setup
// ------------------------------------------------------------
// OTLP/HTTP exporter 로 trace 를 내보낸다.
//   - endpoint 가 비어 있으면 아무것도 설치하지 않는다
//   - exporter 생성은 3초, 전체 setup 은 15초 제한
func Setup(ctx context.Context, serviceName, endpoint string, log zerolog.Logger) (Telemetry, error) {
	if endpoint == "" {
		log.Debug().Msg("tracing disabled")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tp, err := newTraceProvider(ctx, r, endpoint)
	if err != nil {
		return Telemetry{}, err
	}
	otel.SetTracerProvider(tp)

	log.Info().Str("type", "http").Str("endpoint", endpoint).Msg("tracer export initialized")
	return Telemetry{TracerProvider: tp}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, endpoint string) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	), nil
}
