// internal/landing/key.go
package landing

import (
	"fmt"
	"strings"
	"time"
)

// key.go
// ------------------------------------------------------------
// landing object key 규칙:
//
//	<prefix>/<competitor>/<YYYY>/<MM>/<DD>/<path>.json[.gz]
//
// 예:
//
//	landing/silversea/2025/01/07/SD2501/prices-v2/US/Essential.json
//
// 날짜 partition 은 run 시작 시점(UTC)으로 한 번 고정한다.
// 자정을 넘겨 실행되는 run 도 하나의 날짜 아래에 모인다.
// 같은 날 같은 unit 을 다시 돌리면 같은 key 를 덮어쓴다.

// Partition 은 YYYY/MM/DD (UTC).
type Partition string

// NewPartition 은 t 를 UTC 로 바꿔 partition 을 만든다.
func NewPartition(t time.Time) Partition {
	return Partition(t.UTC().Format("2006/01/02"))
}

// BuildKey
// ------------------------------------------------------------
// prefix 와 competitor 는 앞뒤 "/" 를 정리한다. path 는 그대로 쓴다
// (scrape.ValidateUnit 이 segment 를 이미 검사했다).
func BuildKey(prefix, competitor string, part Partition, path string, gz bool) string {
	ext := ".json"
	if gz {
		ext = ".json.gz"
	}
	segs := make([]string, 0, 4)
	for _, s := range []string{prefix, competitor, string(part), path} {
		s = strings.Trim(s, "/")
		if s != "" {
			segs = append(segs, s)
		}
	}
	return strings.Join(segs, "/") + ext
}

// DatePrefix 는 특정 날짜의 competitor partition 전체를 가리키는 prefix.
// inspect 에서 쓴다.
func DatePrefix(prefix, competitor string, part Partition) string {
	return fmt.Sprintf("%s/%s/%s/", strings.Trim(prefix, "/"), strings.Trim(competitor, "/"), part)
}
