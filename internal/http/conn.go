package http

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Conn is a reusable HTTP/1.1 connection bound to a single host and port.
// A Conn is used by one goroutine at a time; the Pool hands out exclusive
// ownership on Borrow and takes it back on Release.
type Conn interface {
	// RoundTrip writes req and reads the response headers. The caller must
	// consume and close the response body before the next RoundTrip.
	// A positive timeout bounds the whole exchange, including the body read.
	RoundTrip(req *http.Request, timeout time.Duration) (*http.Response, error)

	// Close releases the underlying socket, if any.
	Close() error
}

// ConnFunc creates a connection for host:port. Creation must not perform I/O;
// connections dial lazily on their first RoundTrip.
type ConnFunc func(host string, port int) Conn

// NewConn is the default ConnFunc: a keep-alive TCP connection.
func NewConn(host string, port int) Conn {
	return &keepAliveConn{addr: net.JoinHostPort(host, strconv.Itoa(port))}
}

type keepAliveConn struct {
	addr string
	nc   net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	// server asked for Connection: close on the previous exchange
	closeAfter bool
}

func (c *keepAliveConn) dial(timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.Dial("tcp", c.addr)
	if err != nil {
		return err
	}
	c.nc = nc
	c.br = bufio.NewReader(nc)
	c.bw = bufio.NewWriter(nc)
	c.closeAfter = false
	return nil
}

func (c *keepAliveConn) RoundTrip(req *http.Request, timeout time.Duration) (*http.Response, error) {
	if c.closeAfter {
		c.Close()
	}
	if c.nc == nil {
		if err := c.dial(timeout); err != nil {
			return nil, err
		}
	}

	if timeout > 0 {
		if err := c.nc.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	} else {
		_ = c.nc.SetDeadline(time.Time{})
	}

	if err := req.Write(c.bw); err != nil {
		return nil, err
	}
	if err := c.bw.Flush(); err != nil {
		return nil, err
	}

	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return nil, err
	}
	c.closeAfter = resp.Close
	return resp, nil
}

func (c *keepAliveConn) Close() error {
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc, c.br, c.bw = nil, nil, nil
	return err
}
