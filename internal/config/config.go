// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config
//
// 스크래퍼 실행에 필요한 모든 환경 변수 값을 보관하는 구조체.
// 모든 값은 프로세스 시작 시점에 Load() 에 의해 초기화되며,
// 이후에는 변경되지 않는 불변(read-only) 설정들이다.
type Config struct {

	// ---------------------------
	// 서비스 식별 / 로깅
	// ---------------------------

	ServiceName string // 로그·trace 에 찍히는 서비스 이름
	InstanceID  string // 프로세스 고유 ID (호스트명 기반, 실패 시 랜덤 hex)

	LogLevel   string // zerolog 레벨 (debug, info, warn, error)
	LogPretty  bool   // true 면 ConsoleWriter (로컬 개발용)
	LogSampleN uint32 // debug/info 샘플링 비율 (1 이면 샘플링 안 함)

	// ---------------------------
	// Booking backend (websocket)
	// ---------------------------

	SocketURL       string
	SocketOrigin    string
	SocketReadLimit int64         // 응답 메시지 최대 크기 (바이트)
	ExchangeTimeout time.Duration // 요청 1건(send+receive) 의 deadline
	FanoutWorkers   int           // WorkUnit 하나당 동시 exchange 수

	Currency   string // country/currency 코드 (예: US)
	Competitor string // landing 경로 최상위 namespace

	// ---------------------------
	// Catalog (search index) API
	// ---------------------------

	CatalogHost      string
	CatalogAPIKey    string
	CatalogAppID     string
	CatalogIndex     string
	CatalogMaxPage   int           // 페이지 hard cap (runaway pagination 방지)
	CatalogPageDelay time.Duration // 페이지 사이 대기

	// ---------------------------
	// Landing (S3)
	// ---------------------------
	// 업로드 실패 시 재시도/로컬 버퍼링은 하지 않는다.
	// S3AppRetries 는 "시도 횟수" 이며 기본값 1 (단일 시도).

	AWSRegion    string
	RawBucket    string
	RawPrefix    string
	S3Timeout    time.Duration
	S3AppRetries int
	LandingGzip  bool

	// ---------------------------
	// Reference table (cabin categories)
	// ---------------------------

	RefdataDriver string // "sqlite" | "pgx"
	RefdataDSN    string

	// ---------------------------
	// 운영용 엔드포인트 / tracing (빈 값이면 비활성)
	// ---------------------------

	OpsAddr      string
	OTLPEndpoint string
}

// Load
//
// 환경 변수 기반으로 Config 값을 초기화한다.
// 필수 env 가 비어있거나 형식이 잘못된 값이 있으면 모두 모아서 하나의 에러로 반환한다.
func Load() (Config, error) {
	l := &loader{}

	cfg := Config{
		ServiceName: l.get("SERVICE_NAME", "sailscrape"),
		InstanceID:  fallbackInstanceID(),

		LogLevel:   l.get("LOG_LEVEL", "info"),
		LogPretty:  l.boolean("LOG_PRETTY", false),
		LogSampleN: uint32(l.integer("LOG_SAMPLE_N", 1)),

		SocketURL:       l.get("SOCKET_URL", "wss://api-ws.booking.digital.silversea.com/"),
		SocketOrigin:    l.get("SOCKET_ORIGIN", "https://quote.silversea.com"),
		SocketReadLimit: l.int64("SOCKET_READ_LIMIT", 4<<20),
		ExchangeTimeout: l.duration("EXCHANGE_TIMEOUT", 30*time.Second),
		FanoutWorkers:   l.integer("FANOUT_WORKERS", 10),

		Currency:   l.get("CURRENCY", "US"),
		Competitor: l.get("COMPETITOR", "silversea"),

		CatalogHost:      l.must("CATALOG_HOST"),
		CatalogAPIKey:    l.must("CATALOG_API_KEY"),
		CatalogAppID:     l.must("CATALOG_APP_ID"),
		CatalogIndex:     l.get("CATALOG_INDEX", "prod_cruises_all_languages"),
		CatalogMaxPage:   l.integer("CATALOG_MAX_PAGE", 300),
		CatalogPageDelay: l.duration("CATALOG_PAGE_DELAY", time.Second),

		AWSRegion:    l.must("AWS_REGION"),
		RawBucket:    l.must("RAW_BUCKET"),
		RawPrefix:    l.get("RAW_PREFIX", "landing"),
		S3Timeout:    l.duration("S3_TIMEOUT", 10*time.Second),
		S3AppRetries: l.integer("S3_APP_RETRIES", 1),
		LandingGzip:  l.boolean("LANDING_GZIP", false),

		RefdataDriver: l.get("REFDATA_DRIVER", "sqlite"),
		RefdataDSN:    l.get("REFDATA_DSN", "file:refdata.db"),

		OpsAddr:      l.get("OPS_ADDR", ""),
		OTLPEndpoint: l.get("OTLP_ENDPOINT", ""),
	}

	if cfg.FanoutWorkers <= 0 {
		l.fail("FANOUT_WORKERS must be positive")
	}
	if cfg.S3AppRetries <= 0 {
		l.fail("S3_APP_RETRIES must be positive")
	}
	if cfg.RefdataDriver != "sqlite" && cfg.RefdataDriver != "pgx" {
		l.fail(fmt.Sprintf("REFDATA_DRIVER must be sqlite or pgx, got %q", cfg.RefdataDriver))
	}

	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loader
//
// must / integer / duration / boolean 공통 패턴.
// 잘못된 값을 만나도 바로 종료하지 않고 problems 에 쌓아두었다가
// Load 마지막에 한 번에 보고한다 (어떤 키가 문제인지 전부 보이도록).
type loader struct {
	problems []string
}

func (l *loader) fail(msg string) {
	l.problems = append(l.problems, msg)
}

func (l *loader) err() error {
	if len(l.problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(l.problems, "; "))
}

func (l *loader) must(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		l.fail("missing required env: " + key)
	}
	return v
}

func (l *loader) get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (l *loader) integer(key string, fallback int) int {
	v := l.get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(fmt.Sprintf("invalid int env %s=%q", key, v))
		return fallback
	}
	return n
}

func (l *loader) int64(key string, fallback int64) int64 {
	v := l.get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		l.fail(fmt.Sprintf("invalid int64 env %s=%q", key, v))
		return fallback
	}
	return n
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	v := l.get(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(fmt.Sprintf("invalid duration env %s=%q", key, v))
		return fallback
	}
	return d
}

func (l *loader) boolean(key string, fallback bool) bool {
	v := l.get(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(fmt.Sprintf("invalid bool env %s=%q", key, v))
		return fallback
	}
	return b
}

// fallbackInstanceID
//
// 이 스크래퍼 프로세스를 식별하는 고유 값.
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
