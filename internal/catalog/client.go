// internal/catalog/client.go
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"sailscrape/internal/metrics"
	"sailscrape/internal/model"
	"sailscrape/internal/telemetry"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	queriesPath = "/1/indexes/*/queries"

	DefaultIndex   = "prod_cruises_all_languages"
	DefaultMaxPage = 300
)

// FetchError 는 catalog 페이지 요청이 실패한 경우.
// Status 가 0 이면 응답을 받지 못한 transport 오류.
type FetchError struct {
	Page   int
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("catalog page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("catalog page %d: status %d: %v", e.Page, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PageSink 는 페이지 원본 응답을 받는다 (landing 용). 에러는 로그만 남긴다.
type PageSink func(ctx context.Context, page int, raw []byte) error

type Options struct {
	Host      string // "host" 또는 "https://host"
	APIKey    string
	AppID     string
	Index     string
	Country   string
	MaxPage   int
	PageDelay time.Duration
	Timeout   time.Duration

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Client
// ------------------------------------------------------------
// 검색 API 에서 sail code 와 fare code 목록을 페이지 단위로 가져온다.
// 페이지 0 부터 순서대로 요청하고, 아래 중 하나면 멈춘다:
//
//   - page > MaxPage (무한 루프 방지용 hard cap)
//   - page >= nbPages-1
//   - 200 이 아닌 응답 (지금까지 모은 결과와 *FetchError 반환)
type Client struct {
	http      *resty.Client
	index     string
	country   string
	maxPage   int
	pageDelay time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func New(opts Options) *Client {
	if opts.Index == "" {
		opts.Index = DefaultIndex
	}
	if opts.Country == "" {
		opts.Country = "US"
	}
	if opts.MaxPage <= 0 {
		opts.MaxPage = DefaultMaxPage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	base := opts.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(opts.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeaders(map[string]string{
			"Accept":                   "*/*",
			"Content-Type":             "application/json",
			"Referer":                  "https://www.silversea.com/",
			"X-Algolia-API-Key":        opts.APIKey,
			"X-Algolia-Application-Id": opts.AppID,
		})
	telemetry.InstrumentResty(hc, "sailscrape/catalog")

	return &Client{
		http:      hc,
		index:     opts.Index,
		country:   opts.Country,
		maxPage:   opts.MaxPage,
		pageDelay: opts.PageDelay,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
}

type queryRequest struct {
	Requests []indexQuery `json:"requests"`
}

type indexQuery struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

type queryResponse struct {
	Results []struct {
		NbPages int                  `json:"nbPages"`
		Hits    []model.CatalogEntry `json:"hits"`
	} `json:"results"`
}

// params 는 검색 API 가 기대하는 url-encoded query 문자열.
func (c *Client) params(page int) string {
	return fmt.Sprintf(
		"analytics=false&distinct=true&filters=(countries%%3A%%22%s%%22)&hitsPerPage=10&maxValuesPerFacet=100&page=%d&query=&tagFilters=",
		c.country, page,
	)
}

// Fetch
// ------------------------------------------------------------
// 전체 catalog 를 가져온다. sink 가 nil 이 아니면 페이지마다 원본을 넘긴다.
//
// 반환:
//   - 정상 종료: (entries, nil)
//   - 페이지 실패: (그때까지의 entries, *FetchError)
//   - ctx 취소: (그때까지의 entries, ctx.Err())
func (c *Client) Fetch(ctx context.Context, sink PageSink) ([]model.CatalogEntry, error) {
	var entries []model.CatalogEntry

	for page := 0; ; page++ {
		if page > 0 && c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return entries, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		raw, res, err := c.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			atomic.AddInt64(&c.metrics.CatalogErrorsTotal, 1)
			c.log.Error().Err(err).Int("page", page).Int("entries", len(entries)).Msg("catalog fetch stopped")
			return entries, err
		}
		atomic.AddInt64(&c.metrics.CatalogPagesTotal, 1)

		nbPages := 0
		if len(res.Results) > 0 {
			nbPages = res.Results[0].NbPages
			for _, hit := range res.Results[0].Hits {
				if hit.SailCode == "" {
					c.log.Debug().Int("page", page).Msg("hit without cruiseCode skipped")
					continue
				}
				entries = append(entries, hit)
			}
		}

		if sink != nil {
			if err := sink(ctx, page, raw); err != nil {
				c.log.Warn().Err(err).Int("page", page).Msg("catalog page not landed")
			}
		}

		if page > c.maxPage || page >= nbPages-1 {
			c.log.Info().Int("page", page).Int("nb_pages", nbPages).Int("entries", len(entries)).Msg("catalog fetch finished")
			return entries, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]byte, queryResponse, error) {
	var out queryResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(queryRequest{Requests: []indexQuery{{IndexName: c.index, Params: c.params(page)}}}).
		Post(queriesPath)
	if err != nil {
		return nil, out, &FetchError{Page: page, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, out, &FetchError{Page: page, Status: resp.StatusCode(), Err: fmt.Errorf("%s", resp.Status())}
	}

	raw := resp.Body()
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, out, &FetchError{Page: page, Status: resp.StatusCode(), Err: fmt.Errorf("decode: %w", err)}
	}
	return raw, out, nil
}
