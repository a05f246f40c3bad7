package http

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeffersonwarrior/eviscape/internal/logging"
)

// Pool is a thread-safe pool of keep-alive connections to one host.
//
// New connections are created only when no idle connection is available.
// Up to MaxSize connections are kept for reuse; anything released beyond
// that is closed. Borrow and Release never block.
type Pool struct {
	host    string
	port    int
	timeout time.Duration
	idle    chan Conn
	newConn ConnFunc
	logger  logging.Logger

	created  atomic.Int64
	reused   atomic.Int64
	requests atomic.Int64
	dropped  atomic.Int64
	broken   atomic.Int64
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Host string
	Port int // default: 80

	// Timeout bounds each individual request attempt (default: none).
	Timeout time.Duration

	// MaxSize is the number of idle connections kept for reuse (default: 10).
	MaxSize int

	// NewConn creates connections (default: NewConn).
	NewConn ConnFunc

	Logger logging.Logger
}

// setDefaults fills in default values for zero-valued fields.
func (c *PoolConfig) setDefaults() {
	if c.Port == 0 {
		c.Port = 80
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 10
	}
	if c.NewConn == nil {
		c.NewConn = NewConn
	}
	c.Logger = logging.OrDefault(c.Logger)
}

// NewPool creates a pool for cfg.Host.
func NewPool(cfg PoolConfig) *Pool {
	cfg.setDefaults()
	return &Pool{
		host:    cfg.Host,
		port:    cfg.Port,
		timeout: cfg.Timeout,
		idle:    make(chan Conn, cfg.MaxSize),
		newConn: cfg.NewConn,
		logger:  cfg.Logger,
	}
}

// PoolFromURL creates a pool for the host of rawURL. Host and Port in cfg
// are overwritten.
func PoolFromURL(rawURL string, cfg PoolConfig) (*Pool, error) {
	host, port, err := HostFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	cfg.Host, cfg.Port = host, port
	return NewPool(cfg), nil
}

// HostFromURL returns the host and port of a URL of the form
// scheme://host[:port]/path. Scheme and path are optional; the port
// defaults to 80.
//
//	HostFromURL("http://google.com/mail/") // "google.com", 80
//	HostFromURL("google.com:8080")         // "google.com", 8080
//	HostFromURL("http://[::1]:8080/")      // "::1", 8080
func HostFromURL(rawURL string) (string, int, error) {
	rest := rawURL
	if _, after, ok := strings.Cut(rest, "//"); ok {
		rest = after
	}
	if before, _, ok := strings.Cut(rest, "/"); ok {
		rest = before
	}

	host, portStr, hasPort := rest, "", false
	if strings.HasPrefix(rest, "[") {
		// IPv6 literal: [::1] or [::1]:8080
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", 0, fmt.Errorf("missing ']' in host of url %q", rawURL)
		}
		host = rest[1:end]
		switch after := rest[end+1:]; {
		case after == "":
		case strings.HasPrefix(after, ":"):
			portStr, hasPort = after[1:], true
		default:
			return "", 0, fmt.Errorf("unexpected %q after host in url %q", after, rawURL)
		}
	} else if i := strings.LastIndex(rest, ":"); i >= 0 {
		host, portStr, hasPort = rest[:i], rest[i+1:], true
	}

	port := 80
	if hasPort {
		n, err := strconv.Atoi(portStr)
		if err != nil || n <= 0 || n > 65535 {
			return "", 0, fmt.Errorf("invalid port %q in url %q", portStr, rawURL)
		}
		port = n
	}
	return host, port, nil
}

// Host returns the host this pool connects to.
func (p *Pool) Host() string { return p.host }

// Port returns the port this pool connects to.
func (p *Pool) Port() int { return p.port }

// Timeout returns the per-attempt timeout.
func (p *Pool) Timeout() time.Duration { return p.timeout }

// Addr returns host:port, omitting the port when it is 80. IPv6 hosts are
// bracketed.
func (p *Pool) Addr() string {
	host := p.host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if p.port == 80 {
		return host
	}
	return host + ":" + strconv.Itoa(p.port)
}

// Borrow returns an idle connection if there is one, otherwise a new one.
func (p *Pool) Borrow() Conn {
	select {
	case conn := <-p.idle:
		p.reused.Add(1)
		return conn
	default:
	}
	n := p.created.Add(1)
	p.logger.Infof("Starting new HTTP connection (%d): %s", n, p.host)
	return p.newConn(p.host, p.port)
}

// Release puts conn back into the pool. If the pool already holds MaxSize
// idle connections, conn is closed instead.
func (p *Pool) Release(conn Conn) {
	select {
	case p.idle <- conn:
	default:
		p.dropped.Add(1)
		p.logger.Warnf("Connection pool is full, discarding connection: %s", p.host)
		conn.Close()
	}
}

// Discard closes a connection that failed mid-exchange. It never goes back
// into the pool.
func (p *Pool) Discard(conn Conn) {
	p.broken.Add(1)
	conn.Close()
}

// Close closes all idle connections. The pool remains usable.
func (p *Pool) Close() error {
	for {
		select {
		case conn := <-p.idle:
			conn.Close()
		default:
			return nil
		}
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Created  int64 // connections ever created
	Reused   int64 // borrows served from an idle connection
	Requests int64 // request attempts served
	Idle     int   // connections currently idle
	Dropped  int64 // released into a full pool and closed
	Broken   int64 // discarded after a failed exchange
}

// InUse is the number of connections currently borrowed, assuming none
// were closed through Close.
func (s Stats) InUse() int64 {
	return s.Created - int64(s.Idle) - s.Dropped - s.Broken
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Created:  p.created.Load(),
		Reused:   p.reused.Load(),
		Requests: p.requests.Load(),
		Idle:     len(p.idle),
		Dropped:  p.dropped.Load(),
		Broken:   p.broken.Load(),
	}
}
