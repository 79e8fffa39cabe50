package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_disabledWithoutEndpoint(t *testing.T) {
	tel, err := Setup(context.Background(), "sailscrape", "", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, tel.TracerProvider)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInstrumentResty_recordsSpanAndRedactsKey(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := resty.New().SetBaseURL(srv.URL)
	InstrumentResty(client, "test")

	_, err := client.R().
		SetHeader("X-Algolia-API-Key", "secret").
		SetBody(`{}`).
		Post("/ok")
	require.NoError(t, err)

	_, err = client.R().Get("/fail")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "http POST", spans[0].Name())
	var found bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == attribute.Key("request/header: X-Algolia-Api-Key") {
			found = true
			assert.Equal(t, "[redacted]", kv.Value.AsString())
		}
	}
	assert.True(t, found, "api key header attribute missing")

	assert.Equal(t, "http GET", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
