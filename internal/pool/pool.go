package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Pool 구성 목적
//
// landing 단계에서 aggregate 마다 gzip 결과 버퍼와 gzip.Writer 를
// 새로 만들지 않도록 재사용한다. inspect 의 download 경로도
// 같은 버퍼 풀을 쓴다.
// ---------------------------------------------------------------

var (
	// BufferPool:
	//   - gzip 인코딩 결과 / download body 를 담는 임시 버퍼
	//   - 초기 용량 64KB (price unit aggregate 는 대부분 이 안에 들어감)
	//   - MaxBufferCap 초과 버퍼는 풀에 넣지 않음
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 64*1024))
		},
	}

	// GzipPool:
	//   - gzip.Writer 재사용
	//   - BestSpeed: 압축률보다 unit 처리 속도 우선
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// Pool 에 되돌려줄 최대 버퍼 용량.
// 이보다 큰 버퍼는 GC 에게 맡긴다.
const MaxBufferCap = 4 * 1024 * 1024 // 4MB

// GetBuffer 는 비어 있는 버퍼를 꺼낸다.
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer:
//   - MaxBufferCap 이하이면 풀에 재사용
//   - 초대형 aggregate 버퍼는 풀로 돌리지 않음
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
