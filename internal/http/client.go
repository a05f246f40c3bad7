package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client executes requests against the host of its Pool, handling
// retries of broken connections and redirects.
type Client struct {
	pool   *Pool
	config Config
}

// NewClient creates a request executor on top of pool.
// Default values are applied to zero-valued config fields.
func NewClient(pool *Pool, cfg Config) *Client {
	cfg.setDefaults()
	return &Client{pool: pool, config: cfg}
}

// Pool returns the connection pool used by the client.
func (c *Client) Pool() *Pool { return c.pool }

// Open borrows a connection from the pool and performs an HTTP request.
//
// rawURL is either a path ("/api/1.0/rest/?method=...") or an absolute URL
// on the pool's host.
//
// Retry behavior:
//   - A broken connection is discarded and the request retried
//   - A timeout fails immediately with a TimeoutError, whatever the budget
//   - 301, 302, 303 and 307 with a Location header are followed on the same
//     host; each followed redirect counts as a retry
//   - A Location on another host is not followed: the 3xx response is
//     returned as-is and a warning is logged
//   - Once the budget (WithRetries, default 3) is spent, a MaxRetryError is returned
//
// Any status outside the redirect set is returned as-is, including 4xx and 5xx.
//
// ctx is checked between attempts; an attempt in flight is bounded only by
// the pool timeout.
func (c *Client) Open(ctx context.Context, method, rawURL string, body []byte, header http.Header, opts ...OpenOption) (*Response, error) {
	o := newOpenOptions(opts)
	retries := o.retries
	failures := 0
	var lastErr error

	for {
		if retries < 0 {
			return nil, &MaxRetryError{URL: rawURL, Reason: lastErr}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := c.newRequest(ctx, method, rawURL, body, header)
		if err != nil {
			return nil, err
		}

		if c.config.BeforeRequest != nil {
			if err := c.config.BeforeRequest(req); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(req)
		if err != nil {
			if c.config.OnError != nil {
				c.config.OnError(req, err)
			}
			if !isBroken(err) {
				return nil, err
			}

			lastErr = err
			c.config.Logger.Warnf("Retrying (%d attempts remain) after connection broken by '%v': %s",
				retries, err, sanitizeURL(rawURL))

			retries--
			if retries < 0 {
				continue
			}
			delay := calculateBackoff(&c.config.Retry, failures)
			failures++
			if c.config.OnRetry != nil {
				if hookErr := c.config.OnRetry(req, retries, delay); hookErr != nil {
					return nil, hookErr
				}
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if c.config.AfterResponse != nil {
			c.config.AfterResponse(req, resp)
		}

		location := resp.GetHeader("Location", "")
		if !o.redirect || !isRedirect(resp.Status) || location == "" {
			return resp, nil
		}

		next, err := c.resolveRedirect(req.URL, location)
		if err != nil {
			return nil, err
		}
		if next == "" {
			c.config.Logger.Warnf("Not following redirect to another host: %s", sanitizeURL(location))
			return resp, nil
		}
		if c.config.OnRedirect != nil {
			if err := c.config.OnRedirect(resp, next); err != nil {
				return nil, err
			}
		}
		c.config.Logger.Infof("Redirecting %s -> %s", sanitizeURL(rawURL), sanitizeURL(next))
		rawURL = next
		retries--
	}
}

// attempt performs one exchange on a borrowed connection. Only a fully
// read exchange puts the connection back into the pool.
func (c *Client) attempt(req *http.Request) (*Response, error) {
	conn := c.pool.Borrow()
	c.pool.requests.Add(1)

	raw, err := conn.RoundTrip(req, c.pool.timeout)
	if err == nil {
		var resp *Response
		resp, err = NewResponse(raw)
		if err == nil {
			c.pool.Release(conn)
			return resp, nil
		}
	}

	c.pool.Discard(conn)
	if isTimeout(err) {
		return nil, &TimeoutError{URL: req.URL.String(), Timeout: c.pool.timeout, Err: err}
	}
	return nil, &ConnectionBrokenError{URL: req.URL.String(), Err: err}
}

func isBroken(err error) bool {
	_, ok := err.(*ConnectionBrokenError)
	return ok
}

// newRequest builds the request for one attempt. The body is re-read from
// the byte slice on every attempt.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, body []byte, header http.Header) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, r)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	if req.URL.Host == "" {
		req.URL.Scheme = "http"
		req.URL.Host = c.pool.Addr()
	}
	req.Host = req.URL.Host
	for name, values := range header {
		req.Header[name] = append([]string(nil), values...)
	}
	return req, nil
}

// resolveRedirect resolves location against current. It returns "" when the
// target lives on another host than the pool.
func (c *Client) resolveRedirect(current *url.URL, location string) (string, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", location, err)
	}
	next := current.ResolveReference(loc)
	host, port, err := HostFromURL(next.Host)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(host, c.pool.host) || port != c.pool.port {
		return "", nil
	}
	return next.String(), nil
}

// Get performs a GET request, appending fields to the query string.
func (c *Client) Get(ctx context.Context, rawURL string, fields url.Values, header http.Header, opts ...OpenOption) (*Response, error) {
	if len(fields) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + fields.Encode()
	}
	return c.Open(ctx, http.MethodGet, rawURL, nil, header, opts...)
}

// Post performs a multipart/form-data POST of fields.
//
// The Content-Type header is always replaced because it carries the random
// boundary of the encoded body. header itself is not modified.
func (c *Client) Post(ctx context.Context, rawURL string, fields Fields, header http.Header, opts ...OpenOption) (*Response, error) {
	body, contentType, err := EncodeMultipartFormData(fields)
	if err != nil {
		return nil, err
	}
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set("Content-Type", contentType)
	return c.Open(ctx, http.MethodPost, rawURL, body, h, opts...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
