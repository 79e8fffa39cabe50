package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"sailscrape/internal/catalog"
	"sailscrape/internal/config"
	"sailscrape/internal/landing"
	"sailscrape/internal/logger"
	"sailscrape/internal/metrics"
	"sailscrape/internal/model"
	"sailscrape/internal/refdata"
	"sailscrape/internal/scrape"
	"sailscrape/internal/server"
	"sailscrape/internal/socket"
	"sailscrape/internal/telemetry"

	"github.com/rs/zerolog"
)

// runtime 은 한 번의 CLI 실행 동안 쓰는 구성 요소 묶음.
//
// 구성 요소는 필요할 때 만든다 (migrate 는 S3 / socket 을 만들지 않는다).
// Close 는 만들어진 것만 역순으로 정리하며, 여러 번 호출해도 안전하다.
type runtime struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	status  *server.Status
	tel     telemetry.Telemetry
	ops     *server.Server

	store      *landing.Store
	correlator *socket.Correlator
	db         *sql.DB

	closeOnce sync.Once
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	log := logger.Init(cfg)

	tel, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		status:  server.NewStatus(),
		tel:     tel,
	}

	if cfg.OpsAddr != "" {
		rt.ops = server.New(cfg.OpsAddr, server.NewHandler(rt.metrics, rt.status), log)
		rt.ops.Start()
	}
	return rt, nil
}

// landing 은 S3 landing store. run 날짜 partition 은 처음 만들 때 고정된다.
func (r *runtime) landing(ctx context.Context) (*landing.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	s, err := landing.NewFromConfig(ctx, r.cfg, r.log.With().Str("component", "landing").Logger())
	if err != nil {
		return nil, err
	}
	r.store = s
	return s, nil
}

func (r *runtime) catalog() *catalog.Client {
	return catalog.New(catalog.Options{
		Host:      r.cfg.CatalogHost,
		APIKey:    r.cfg.CatalogAPIKey,
		AppID:     r.cfg.CatalogAppID,
		Index:     r.cfg.CatalogIndex,
		Country:   r.cfg.Currency,
		MaxPage:   r.cfg.CatalogMaxPage,
		PageDelay: r.cfg.CatalogPageDelay,
		Metrics:   r.metrics,
		Logger:    r.log.With().Str("component", "catalog").Logger(),
	})
}

// driver 는 socket → executor → driver → landing 을 연결한다.
// websocket 연결은 첫 exchange 에서 열린다.
func (r *runtime) driver(ctx context.Context) (*scrape.Driver, error) {
	store, err := r.landing(ctx)
	if err != nil {
		return nil, err
	}

	if r.correlator == nil {
		dial := socket.Dialer(socket.DialConfig{
			URL:       r.cfg.SocketURL,
			Origin:    r.cfg.SocketOrigin,
			ReadLimit: r.cfg.SocketReadLimit,
		})
		r.correlator = socket.NewCorrelator(dial, socket.Options{
			Timeout: r.cfg.ExchangeTimeout,
			Metrics: r.metrics,
			Logger:  r.log.With().Str("component", "socket").Logger(),
		})
	}

	exec := scrape.NewExecutor(r.correlator, scrape.ExecutorOptions{
		Workers: r.cfg.FanoutWorkers,
		Metrics: r.metrics,
		Logger:  r.log.With().Str("component", "executor").Logger(),
	})
	return scrape.NewDriver(exec, store, scrape.DriverOptions{
		Currency: r.cfg.Currency,
		Metrics:  r.metrics,
		Logger:   r.log.With().Str("component", "driver").Logger(),
	}), nil
}

func (r *runtime) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := refdata.Open(ctx, r.cfg.RefdataDriver, r.cfg.RefdataDSN)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *runtime) refdata(ctx context.Context) (*refdata.Store, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return refdata.New(db, r.log.With().Str("component", "refdata").Logger()), nil
}

// fetchCatalog 는 catalog 를 가져오고 페이지 원본을 algolia/{page} 로 landing 한다.
// 페이지 요청 실패는 지금까지 모은 결과로 계속 진행한다.
func (r *runtime) fetchCatalog(ctx context.Context) ([]model.CatalogEntry, error) {
	r.status.SetPhase("catalog")

	store, err := r.landing(ctx)
	if err != nil {
		return nil, err
	}

	sink := func(ctx context.Context, page int, raw []byte) error {
		return store.Put(ctx, "algolia/"+strconv.Itoa(page), raw)
	}

	entries, err := r.catalog().Fetch(ctx, sink)
	if err != nil {
		var ferr *catalog.FetchError
		if !errors.As(err, &ferr) {
			return nil, err
		}
		r.log.Warn().Err(err).Int("entries", len(entries)).Msg("continuing with partial catalog")
	}
	if len(entries) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return entries, nil
}

func (r *runtime) scrapePrices(ctx context.Context, entries []model.CatalogEntry) error {
	r.status.SetPhase("prices")

	d, err := r.driver(ctx)
	if err != nil {
		return err
	}
	rep, err := d.ScrapePrices(ctx, entries)
	r.status.SetReport("prices", rep)
	return err
}

func (r *runtime) scrapeAvailability(ctx context.Context, entries []model.CatalogEntry) error {
	r.status.SetPhase("availability")

	ref, err := r.refdata(ctx)
	if err != nil {
		return err
	}
	cats, err := ref.Categories(ctx, time.Now())
	if err != nil {
		return err
	}

	d, err := r.driver(ctx)
	if err != nil {
		return err
	}
	rep, err := d.ScrapeAvailability(ctx, entries, cats)
	r.status.SetReport("availability", rep)
	return err
}

// Close
//
// 종료 순서:
//  1. websocket 연결 (진행 중 exchange 는 deadline 안에 끝난다)
//  2. 참조 DB
//  3. ops server
//  4. trace flush
//
// 마지막에 카운터를 로그로 남긴다.
func (r *runtime) Close() {
	r.closeOnce.Do(func() {
		r.status.SetPhase("stopping")

		if r.correlator != nil {
			if err := r.correlator.Close(); err != nil {
				r.log.Warn().Err(err).Msg("socket close")
			}
		}
		if r.db != nil {
			if err := r.db.Close(); err != nil {
				r.log.Warn().Err(err).Msg("refdata close")
			}
		}
		if r.ops != nil {
			if err := r.ops.Shutdown(context.Background()); err != nil {
				r.log.Warn().Err(err).Msg("ops server shutdown")
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.tel.Shutdown(ctx); err != nil {
			r.log.Warn().Err(err).Msg("telemetry shutdown")
		}

		r.log.Info().Str("metrics", r.metrics.String()).Msg("shutdown complete")
	})
}
