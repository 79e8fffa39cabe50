package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter 는 ops endpoint 를 등록한 chi router 를 만든다.
//
//   - /health : 프로세스 생존 확인
//   - /metrics: 내부 카운터
//   - /status : 현재 run 단계와 Report
func NewRouter(h *Handler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	r.Get("/metrics", h.HandleMetrics)
	r.Get("/status", h.HandleStatus)
	return r
}

// requestLogger 는 요청마다 debug 로그 한 줄을 남긴다.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Debug().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("remote", r.RemoteAddr).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("ops request")
		})
	}
}

// Server 는 scrape run 과 함께 떠 있는 ops listener.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func New(addr string, h *Handler, log zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(h, log),
			ReadTimeout:  8 * time.Second,
			WriteTimeout: 8 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start 는 별도 goroutine 에서 listen 한다.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("ops server terminated")
		}
	}()
}

// Shutdown 은 최대 5초 동안 진행 중인 요청을 기다린다.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
