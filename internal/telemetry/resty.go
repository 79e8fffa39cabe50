package telemetry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// 값이 span 에 남으면 안 되는 header.
var redactedHeaders = map[string]bool{
	"x-algolia-api-key": true,
	"authorization":     true,
	"cookie":            true,
}

// InstrumentResty 는 client 의 요청마다 span 을 하나씩 연다.
// span 은 응답 또는 에러 hook 에서 닫힌다.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(onBeforeRequest(tracer))
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)
}

func onBeforeRequest(tracer trace.Tracer) resty.RequestMiddleware {
	return func(cli *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), req.Method)
		req.SetContext(ctx)
		return nil
	}
}

func headerAttributes(out *[]attribute.KeyValue, prefix string, headers http.Header) {
	for header, values := range headers {
		redact := redactedHeaders[strings.ToLower(header)]
		for i, v := range values {
			if redact {
				v = "[redacted]"
			}
			key := fmt.Sprintf("%s/header: %s", prefix, header)
			if len(values) > 1 {
				key = fmt.Sprintf("%s (%d)", key, i)
			}
			*out = append(*out, attribute.String(key, v))
		}
	}
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	// RawRequest 는 onBeforeRequest 시점에 아직 nil 이다
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)

	var attrs []attribute.KeyValue
	headerAttributes(&attrs, "request", res.Request.Header)
	headerAttributes(&attrs, "response", res.Header())
	attrs = append(attrs, attribute.Int("response/bytes", len(res.Body())))
	span.SetAttributes(attrs...)

	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}
	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetName(fmt.Sprintf("http %s", req.Method))

	var attrs []attribute.KeyValue
	headerAttributes(&attrs, "request", req.Header)
	span.SetAttributes(attrs...)

	if req.RawRequest == nil {
		return
	}
	span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
}
