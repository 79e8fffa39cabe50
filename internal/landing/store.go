// internal/landing/store.go
package landing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"sailscrape/internal/config"
	"sailscrape/internal/pool"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3API 는 Store 가 쓰는 S3 client 의 부분 집합 (테스트에서 fake 로 대체).
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options 는 Store 설정.
type Options struct {
	Bucket     string
	Prefix     string // RAW_PREFIX
	Competitor string
	Gzip       bool
	Timeout    time.Duration // 시도 1회당 timeout
	Attempts   int           // 1 이면 재시도 없음
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Store
// ------------------------------------------------------------
// aggregate 를 S3 에 저장하는 landing sink.
//   - Put: scrape.Sink 구현. 실패 시 에러만 반환 (DLQ / 로컬 버퍼 없음)
//   - Get / Fetch: 저장된 landing 데이터를 다시 읽는다 (inspect)
//
// 모든 호출은 컨텍스트 기반이고 시도마다 timeout 을 가진다.
type Store struct {
	client   S3API
	bucket   string
	prefix   string
	comp     string
	gzip     bool
	timeout  time.Duration
	attempts int
	part     Partition
	log      zerolog.Logger
}

// New 는 이미 만들어진 client 로 Store 를 만든다.
// 날짜 partition 은 이 시점에 고정된다.
func New(client S3API, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		client:   client,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		comp:     opts.Competitor,
		gzip:     opts.Gzip,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		part:     NewPartition(opts.Now()),
		log:      opts.Logger,
	}
}

// NewFromConfig 는 AWS 기본 credential chain 과 region 으로 S3 client 를 만든다.
// SDK 자체 재시도는 끄고 Attempts 로만 제어한다.
func NewFromConfig(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Store, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})

	return New(client, Options{
		Bucket:     cfg.RawBucket,
		Prefix:     cfg.RawPrefix,
		Competitor: cfg.Competitor,
		Gzip:       cfg.LandingGzip,
		Timeout:    cfg.S3Timeout,
		Attempts:   cfg.S3AppRetries,
		Logger:     log,
	}), nil
}

// Partition 은 이 Store 가 쓰는 날짜 partition.
func (s *Store) Partition() Partition { return s.part }

// Key 는 landing path 의 전체 object key.
func (s *Store) Key(path string) string {
	return BuildKey(s.prefix, s.comp, s.part, path, s.gzip)
}

// DatePrefix 는 이 Store 의 날짜 partition prefix.
func (s *Store) DatePrefix() string {
	return DatePrefix(s.prefix, s.comp, s.part)
}

// Put
// ------------------------------------------------------------
// payload 를 path 에 저장한다.
//   - LANDING_GZIP 이면 gzip 압축 + Content-Encoding: gzip
//   - Attempts 회까지 시도 (기본 1회), 시도 사이 backoff (최대 2초)
//   - shutdown-safe: ctx.Done() 이면 즉시 중단
//
// body 는 시도마다 reader 를 새로 만든다.
func (s *Store) Put(ctx context.Context, path string, payload []byte) error {
	key := s.Key(path)

	body := payload
	if s.gzip {
		gz, err := Gzip(payload)
		if err != nil {
			return fmt.Errorf("landing %s: %w", key, err)
		}
		body = gz
	}

	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.putObject(ctx, key, body)
		if err == nil {
			s.log.Debug().Str("key", key).Int("bytes", len(body)).Int("attempt", attempt).Msg("object stored")
			return nil
		}
		lastErr = err
		s.log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("put object failed")

		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return fmt.Errorf("landing %s: %w", key, lastErr)
}

// putObject 는 PutObject 1회 호출. 재시도는 caller 가 제어한다.
func (s *Store) putObject(ctx context.Context, key string, body []byte) error {
	ctx2, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/x-ndjson"),
	}
	if s.gzip {
		in.ContentEncoding = aws.String("gzip")
	}

	_, err := s.client.PutObject(ctx2, in)
	return err
}

// Get 은 object 하나를 내려받는다. ".gz" key 는 압축을 푼다.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx2, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx2, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())

	if strings.HasSuffix(key, ".gz") {
		return Gunzip(data)
	}
	return data, nil
}

// Fetch
// ------------------------------------------------------------
// prefix 아래 object 중 key 에 action 이 들어간 것만 내려받아
// 유효한 JSON record 들을 반환한다. action 이 비어 있으면 전부.
//
// object 하나를 읽지 못하면 로그를 남기고 다음 object 로 넘어간다.
func (s *Store) Fetch(ctx context.Context, prefix, action string) ([][]byte, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var records [][]byte
	for _, key := range keys {
		if action != "" && !strings.Contains(key, action) {
			continue
		}
		data, err := s.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			s.log.Warn().Err(err).Str("key", key).Msg("skipping unreadable object")
			continue
		}
		recs := SplitRecords(data, s.log.With().Str("key", key).Logger())
		records = append(records, recs...)
	}

	s.log.Info().Str("prefix", prefix).Int("objects", len(keys)).Int("records", len(records)).Msg("fetch finished")
	return records, nil
}

// List 는 prefix 아래 모든 object key 를 반환한다 (페이지 자동 처리).
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
