// internal/landing/encoder.go
package landing

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"sailscrape/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// Gzip 은 aggregate(NDJSON) 를 gzip 으로 압축한다.
//
//   - gzip.Writer + bytes.Buffer 는 pool 에서 재사용
//   - 결과는 새로운 []byte 로 복사해서 호출자에게 소유권을 넘긴다
//     (pool 버퍼를 그대로 반환하면 다음 사용자가 덮어쓴다)
func Gzip(payload []byte) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)
	defer pool.GzipPool.Put(gz)

	if _, err := gz.Write(payload); err != nil {
		_ = gz.Close()
		return nil, err
	}
	// Close 시점에 footer 가 써진다
	if err := gz.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Gunzip 은 Gzip 의 역.
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer r.Close()

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// SplitRecords
// ------------------------------------------------------------
// NDJSON 을 줄 단위로 나누고 유효한 JSON 줄만 반환한다.
// 빈 줄은 무시하고, JSON 이 아닌 줄은 로그를 남기고 건너뛴다.
func SplitRecords(data []byte, log zerolog.Logger) [][]byte {
	var out [][]byte

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			log.Warn().Int("line", n).Int("bytes", len(line)).Msg("skipping invalid json line")
			continue
		}
		rec := make([]byte, len(line))
		copy(rec, line)
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		log.Warn().Err(err).Int("line", n).Msg("record scan stopped")
	}
	return out
}
