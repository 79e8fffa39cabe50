// internal/socket/conn.go
package socket

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

// Conn
// ------------------------------------------------------------
// backend 와의 상태ful duplex 연결 하나.
// 자체적인 동시성 보호는 없다 → 반드시 Correlator 를 통해서만 사용한다.
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// DialFunc 는 새 Conn 을 연다. Correlator 가 최초 연결과
// 오류 후 재연결에 사용한다.
type DialFunc func(ctx context.Context) (Conn, error)

// DialConfig 는 websocket 연결 파라미터.
type DialConfig struct {
	URL       string
	Origin    string
	UserAgent string
	ReadLimit int64 // 0 이면 라이브러리 기본값(32KiB) 사용
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.132 Safari/537.36"

// WSConn 은 nhooyr websocket 위의 Conn 구현.
type WSConn struct {
	c *websocket.Conn
}

// Dial 은 브라우저와 같은 헤더로 websocket 연결을 연다.
// permessage-deflate 는 context takeover 모드로 협상한다.
func Dial(ctx context.Context, cfg DialConfig) (*WSConn, error) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	header := http.Header{}
	header.Set("Accept-Language", "en-GB,en-US;q=0.9,en;q=0.8")
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")
	header.Set("User-Agent", ua)
	if cfg.Origin != "" {
		header.Set("Origin", cfg.Origin)
	}

	c, _, err := websocket.Dial(ctx, cfg.URL, &websocket.DialOptions{
		HTTPHeader:      header,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	if cfg.ReadLimit > 0 {
		c.SetReadLimit(cfg.ReadLimit)
	}

	return &WSConn{c: c}, nil
}

// Dialer 는 cfg 로 고정된 DialFunc 를 만든다.
func Dialer(cfg DialConfig) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		return Dial(ctx, cfg)
	}
}

func (w *WSConn) Send(ctx context.Context, msg []byte) error {
	return w.c.Write(ctx, websocket.MessageText, msg)
}

func (w *WSConn) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *WSConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
