package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const handshakeTimeout = 10 * time.Second

// DialOpt customizes [Dial].
type DialOpt func(*Conn)

// WithHTTPHeaders adds HTTP headers to the handshake request.
func WithHTTPHeaders(hs http.Header) DialOpt {
	return func(c *Conn) {
		for k, vs := range hs {
			for _, v := range vs {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithDialer replaces the default WebSocket dialer (e.g. to set a proxy or TLS configuration).
func WithDialer(d *websocket.Dialer) DialOpt {
	return func(c *Conn) {
		c.dialer = d
	}
}

// WithReadLimit sets the maximum size in bytes of incoming data messages.
func WithReadLimit(n int64) DialOpt {
	return func(c *Conn) {
		c.readLimit = n
	}
}

// Dial opens a client connection to a WebSocket server. It returns when
// the connection is open, or with an error if the handshake failed.
//
// If ctx is canceled before the connection opens, Dial returns the context's
// error, even if the handshake is still in progress (it is abandoned).
// After that, ctx has no effect on the returned connection.
func Dial(ctx context.Context, rawURL string, opts ...DialOpt) (*Conn, error) {
	c := &Conn{
		logger:  zerolog.Ctx(ctx),
		dialer:  &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshakeTimeout},
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}

	u, err := webSocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	type result struct {
		ws   *websocket.Conn
		resp *http.Response
		err  error
	}
	rc := make(chan result, 1)
	go func() {
		ws, resp, err := c.dialer.DialContext(ctx, u, c.headers)
		rc <- result{ws: ws, resp: resp, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		// Don't leak a connection that opens after we stopped waiting for it.
		go func() {
			if r := <-rc; r.ws != nil {
				_ = r.ws.Close()
			}
		}()
		return nil, ctx.Err()
	case r = <-rc:
	}

	if r.err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.resp != nil {
			return nil, fmt.Errorf("WebSocket handshake failed: %s: %w", r.resp.Status, r.err)
		}
		return nil, fmt.Errorf("failed to dial WebSocket server: %w", r.err)
	}

	c.ws = r.ws
	c.start()
	c.logger.Debug().Str("host", r.ws.RemoteAddr().String()).Msg("WebSocket connection opened")

	return c, nil
}

// webSocketURL accepts "ws" and "wss" URLs, as well as their "http" and "https" equivalents.
func webSocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid WebSocket URL scheme: %q", u.Scheme)
	}

	return u.String(), nil
}
