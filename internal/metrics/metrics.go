package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 스크랩 실행 상태를 나타내는 카운터 모음이다.
// 모든 필드는 atomic 으로만 접근한다.
type Metrics struct {
	// ======================
	// Exchange 레벨 지표
	// ======================

	// ExchangesTotal
	// - Correlator 를 통해 실제로 send+receive 를 시도한 횟수.
	ExchangesTotal int64

	// ExchangeErrorsTotal
	// - send/receive 실패 또는 timeout 으로 connection 을 닫은 횟수.
	// - 값이 증가하면 backend 연결이 불안정하다는 신호.
	ExchangeErrorsTotal int64

	// DialsTotal
	// - websocket 연결을 새로 맺은 횟수 (최초 1회 + 오류 후 재연결).
	DialsTotal int64

	// ======================
	// 응답 분류 지표
	// ======================

	ResponsesKeptTotal       int64 // 저장 대상 응답
	ResponsesSuppressedTotal int64 // fare code 미적용 / 빈 availability
	ResponsesFailedTotal     int64 // bad request / 깨진 JSON

	// ======================
	// WorkUnit 지표
	// ======================

	UnitsTotal       int64 // 실행된 unit 수
	UnitsLandedTotal int64 // landing 까지 성공한 unit
	UnitsEmptyTotal  int64 // 모든 응답이 suppressed → landing 생략
	UnitsFailedTotal int64 // fail-fast 로 중단된 unit

	// ======================
	// Landing 지표
	// ======================

	// LandingErrorsTotal
	// - 집계까지 성공했지만 sink 저장에 실패한 횟수.
	// - 이 경우 데이터는 유실된다 (재시도·로컬 버퍼 없음).
	LandingErrorsTotal int64
	LandedBytesTotal   int64

	// ======================
	// Catalog 지표
	// ======================

	CatalogPagesTotal  int64
	CatalogErrorsTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	fmt.Fprintf(&sb, "exchanges_total=%d\n", atomic.LoadInt64(&m.ExchangesTotal))
	fmt.Fprintf(&sb, "exchange_errors_total=%d\n", atomic.LoadInt64(&m.ExchangeErrorsTotal))
	fmt.Fprintf(&sb, "dials_total=%d\n", atomic.LoadInt64(&m.DialsTotal))

	fmt.Fprintf(&sb, "responses_kept_total=%d\n", atomic.LoadInt64(&m.ResponsesKeptTotal))
	fmt.Fprintf(&sb, "responses_suppressed_total=%d\n", atomic.LoadInt64(&m.ResponsesSuppressedTotal))
	fmt.Fprintf(&sb, "responses_failed_total=%d\n", atomic.LoadInt64(&m.ResponsesFailedTotal))

	fmt.Fprintf(&sb, "units_total=%d\n", atomic.LoadInt64(&m.UnitsTotal))
	fmt.Fprintf(&sb, "units_landed_total=%d\n", atomic.LoadInt64(&m.UnitsLandedTotal))
	fmt.Fprintf(&sb, "units_empty_total=%d\n", atomic.LoadInt64(&m.UnitsEmptyTotal))
	fmt.Fprintf(&sb, "units_failed_total=%d\n", atomic.LoadInt64(&m.UnitsFailedTotal))

	fmt.Fprintf(&sb, "landing_errors_total=%d\n", atomic.LoadInt64(&m.LandingErrorsTotal))
	fmt.Fprintf(&sb, "landed_bytes_total=%d\n", atomic.LoadInt64(&m.LandedBytesTotal))

	fmt.Fprintf(&sb, "catalog_pages_total=%d\n", atomic.LoadInt64(&m.CatalogPagesTotal))
	fmt.Fprintf(&sb, "catalog_errors_total=%d\n", atomic.LoadInt64(&m.CatalogErrorsTotal))

	return sb.String()
}
