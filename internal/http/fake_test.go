package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeConn is a Conn whose exchanges are answered by its fakeDialer.
type fakeConn struct {
	id     int
	host   string
	port   int
	dialer *fakeDialer
	inUse  atomic.Bool
	closed atomic.Bool
}

func (c *fakeConn) RoundTrip(req *http.Request, timeout time.Duration) (*http.Response, error) {
	return c.dialer.roundTrip(c, req)
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// fakeDialer creates fakeConns and answers every attempt with handler.
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	attempts int
	paths    []string
	handler  func(attempt int, req *http.Request) (*http.Response, error)
}

func (d *fakeDialer) newConn(host string, port int) Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{id: len(d.conns) + 1, host: host, port: port, dialer: d}
	d.conns = append(d.conns, c)
	return c
}

func (d *fakeDialer) roundTrip(c *fakeConn, req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.attempts++
	attempt := d.attempts
	d.paths = append(d.paths, req.URL.RequestURI())
	handler := d.handler
	d.mu.Unlock()

	if handler == nil {
		return rawResponse(200, nil, "ok"), nil
	}
	return handler(attempt, req)
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) requestedPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.paths...)
}

// rawResponse builds a wire-level response as the default Conn would.
func rawResponse(status int, header map[string]string, body string) *http.Response {
	h := make(http.Header)
	for k, v := range header {
		h.Set(k, v)
	}
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// failingBody fails on the first Read.
type failingBody struct{ err error }

func (b failingBody) Read(p []byte) (int, error) { return 0, b.err }
func (b failingBody) Close() error               { return nil }

func newTestClient(cfg PoolConfig, d *fakeDialer, clientCfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = "www.eviscape.com"
	}
	cfg.NewConn = d.newConn
	return NewClient(NewPool(cfg), clientCfg)
}
