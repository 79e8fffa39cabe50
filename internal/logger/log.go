// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"sailscrape/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 애플리케이션 시작 시 한 번만 호출되는 로거 초기화 함수.
//
//  1. 로그 포맷 전환:
//     - LOG_PRETTY=true : 사람이 읽기 좋은 ConsoleWriter
//     - LOG_PRETTY=false: JSON (CloudWatch / Loki 등에서 검색)
//
//  2. 공통 필드: 모든 로그에 "service", "instance" 를 붙인다.
//
//  3. 샘플링: Debug/Info 는 LOG_SAMPLE_N 중 1개만 기록, Warn/Error 는 항상 기록.
//     스크랩 1회에 exchange 로그가 수만 줄 나오기 때문에 운영에서는 샘플링 권장.
//
// 반환값은 전역 logger 와 동일하며, 컴포넌트에 주입할 때 사용한다.
func Init(cfg config.Config) zerolog.Logger {
	return InitWriter(cfg, os.Stdout)
}

// InitWriter 는 출력 대상을 지정할 수 있는 Init (테스트용).
func InitWriter(cfg config.Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	zlog.Logger = logger

	// 표준 log 패키지(log.Println 등) 출력도 zerolog 로 보낸다.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)

	return logger
}
