package scrape

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sailscrape/internal/metrics"
	"sailscrape/internal/model"
	"sailscrape/internal/socket"
)

// backendConn 은 요청 하나에 응답 하나를 돌려주는 가짜 backend 연결.
// 응답 본문은 요청의 occupancy 로 respond 가 정한다.
type backendConn struct {
	respond func(adults, kids int) string
	queue   chan []byte
	sends   atomic.Int64
}

func newBackendConn(respond func(adults, kids int) string) *backendConn {
	return &backendConn{respond: respond, queue: make(chan []byte, 1)}
}

func (c *backendConn) Send(ctx context.Context, msg []byte) error {
	c.sends.Add(1)
	var req struct {
		Data struct {
			Occupancy struct {
				Adults int `json:"adults"`
				Kids   int `json:"kids"`
			} `json:"occupancy"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return err
	}
	c.queue <- []byte(c.respond(req.Data.Occupancy.Adults, req.Data.Occupancy.Kids))
	return nil
}

func (c *backendConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.queue:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *backendConn) Close() error { return nil }

// newPipeline 은 Correlator → Executor → Driver → sink 를 실제 구성대로 연결한다.
func newPipeline(conn *backendConn, sink Sink, m *metrics.Metrics) *Driver {
	dial := func(ctx context.Context) (socket.Conn, error) { return conn, nil }
	corr := socket.NewCorrelator(dial, socket.Options{Metrics: m, Logger: zerolog.Nop()})
	exec := NewExecutor(corr, ExecutorOptions{Metrics: m, Logger: zerolog.Nop()})
	return NewDriver(exec, sink, DriverOptions{Metrics: m, Logger: zerolog.Nop()})
}

var sd2501 = []model.CatalogEntry{{SailCode: "SD2501", FareCodes: []model.FareCode{"Essential"}}}

func TestPipeline_nineKeepOneEmptyLandsOnce(t *testing.T) {
	conn := newBackendConn(func(adults, kids int) string {
		if adults == 4 {
			return `{"data":{"__typename":"PricesErrorResponseV2"}}`
		}
		return fmt.Sprintf(`{"data":{"prices":[{"adults":%d,"kids":%d}]}}`, adults, kids)
	})
	sink := &memSink{}
	m := metrics.New()

	rep, err := newPipeline(conn, sink, m).ScrapePrices(context.Background(), sd2501)
	require.NoError(t, err)
	assert.Equal(t, Report{Units: 1, Landed: 1}, rep)
	assert.Equal(t, int64(10), conn.sends.Load())

	require.Len(t, sink.objs, 1)
	payload, ok := sink.objs["SD2501/prices-v2/US/Essential"]
	require.True(t, ok)
	require.True(t, strings.HasSuffix(string(payload), "\n"))

	lines := strings.Split(strings.TrimSuffix(string(payload), "\n"), "\n")
	require.Len(t, lines, 9)
	seen := map[string]bool{}
	for _, l := range lines {
		assert.True(t, json.Valid([]byte(l)), l)
		assert.False(t, seen[l], "duplicate line %s", l)
		seen[l] = true
	}
	assert.NotContains(t, string(payload), "PricesErrorResponseV2")
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.UnitsLandedTotal))
}

func TestPipeline_badRequestLandsNothing(t *testing.T) {
	conn := newBackendConn(func(adults, kids int) string {
		return `{"data":{"__typename":"BadRequestResponse"}}`
	})
	sink := &memSink{}
	m := metrics.New()

	rep, err := newPipeline(conn, sink, m).ScrapePrices(context.Background(), sd2501)
	require.NoError(t, err)
	assert.Equal(t, Report{Units: 1, Failed: 1}, rep)
	assert.Empty(t, sink.objs)
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.UnitsFailedTotal))
}
