package server

import (
	"io"
	"net/http"
	"sync"
	"time"

	"sailscrape/internal/metrics"
	"sailscrape/internal/scrape"

	json "github.com/goccy/go-json"
)

// Status 는 현재 실행 중인 run 의 상태. /status 로 노출한다.
type Status struct {
	mu        sync.RWMutex
	phase     string
	startedAt time.Time
	reports   map[string]scrape.Report
}

func NewStatus() *Status {
	return &Status{phase: "idle", reports: map[string]scrape.Report{}}
}

// SetPhase 는 "catalog", "prices" 같은 현재 단계를 기록한다.
func (s *Status) SetPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		s.startedAt = time.Now().UTC()
	}
	s.phase = phase
}

// SetReport 는 단계별 결과를 기록한다.
func (s *Status) SetReport(phase string, r scrape.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[phase] = r
}

type statusView struct {
	Phase     string                   `json:"phase"`
	StartedAt *time.Time               `json:"startedAt,omitempty"`
	Reports   map[string]scrape.Report `json:"reports"`
}

func (s *Status) view() statusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := statusView{Phase: s.phase, Reports: make(map[string]scrape.Report, len(s.reports))}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		v.StartedAt = &t
	}
	for k, r := range s.reports {
		v.Reports[k] = r
	}
	return v
}

type Handler struct {
	metrics *metrics.Metrics
	status  *Status
}

func NewHandler(m *metrics.Metrics, st *Status) *Handler {
	if st == nil {
		st = NewStatus()
	}
	return &Handler{metrics: m, status: st}
}

// HandleHealth
//
// 프로세스가 살아 있으면 항상 200 "ok".
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// HandleMetrics
//
// scrape 카운터를 key=value 텍스트로 출력한다.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}

// HandleStatus
//
// 현재 단계와 단계별 Report 를 JSON 으로 출력한다.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.status.view()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
