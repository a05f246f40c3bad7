// Package eviscape is a client for the Eviscape REST API.
//
// Every call goes through one keep-alive connection pool per client.
// Public calls are plain GET requests; calls made with an access token are
// signed with OAuth 1.0a.
//
// Usage:
//
//	client, err := eviscape.NewClient(eviscape.Config{Key: key, Secret: secret})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	nodes, err := client.SearchNodes(ctx, "iapain", eviscape.Page{})
package eviscape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	evhttp "github.com/jeffersonwarrior/eviscape/internal/http"
	"github.com/jeffersonwarrior/eviscape/internal/logging"
	"github.com/jeffersonwarrior/eviscape/internal/oauth"
	"github.com/jeffersonwarrior/eviscape/internal/ratelimit"
	"github.com/jeffersonwarrior/eviscape/internal/version"
)

const (
	// DefaultServer is the host every URL is built on.
	DefaultServer = "www.eviscape.com"

	// APIVersion is the version segment of the REST endpoint.
	APIVersion = "1.0"

	FormatXML  = "xml"
	FormatJSON = "json"

	defaultPerPage = 10
)

// Token is an OAuth request or access token.
type Token = oauth.Token

// PoolStats is a snapshot of the connection pool counters.
type PoolStats = evhttp.Stats

// Config configures a Client.
type Config struct {
	// Consumer credentials. Only needed for signed calls and the OAuth flow.
	Key    string
	Secret string

	Server string // default: DefaultServer; may carry a port
	Format string // FormatXML (default) or FormatJSON

	Timeout  time.Duration // per request attempt, default: none
	MaxConns int           // idle connections kept, default: 10
	Retries  int           // default: 3

	// RateLimit caps outgoing calls per minute. Zero means unlimited.
	RateLimit int

	Logger logging.Logger

	// NewConn overrides how pool connections are created.
	NewConn evhttp.ConnFunc
}

func (c *Config) setDefaults() {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.Format == "" {
		c.Format = FormatXML
	}
	if c.Retries == 0 {
		c.Retries = evhttp.DefaultRetries
	}
	c.Logger = logging.OrDefault(c.Logger)
}

// Client talks to the Eviscape API. It is safe for concurrent use.
type Client struct {
	config   Config
	consumer oauth.Consumer
	signer   *oauth.Signer
	pool     *evhttp.Pool
	http     *evhttp.Client
	header   http.Header
	limiter  *ratelimit.TokenBucket
	decoder  decoder
	logger   logging.Logger
}

// NewClient creates a client and its connection pool.
func NewClient(cfg Config) (*Client, error) {
	cfg.setDefaults()
	if cfg.Format != FormatXML && cfg.Format != FormatJSON {
		return nil, fmt.Errorf("eviscape: unsupported format %q", cfg.Format)
	}

	pool, err := evhttp.PoolFromURL("http://"+cfg.Server+"/", evhttp.PoolConfig{
		Timeout: cfg.Timeout,
		MaxSize: cfg.MaxConns,
		NewConn: cfg.NewConn,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("eviscape: server %q: %w", cfg.Server, err)
	}

	return &Client{
		config:   cfg,
		consumer: oauth.Consumer{Key: cfg.Key, Secret: cfg.Secret},
		pool:     pool,
		http:     evhttp.NewClient(pool, evhttp.Config{Logger: cfg.Logger}),
		header:   http.Header{"User-Agent": {version.UserAgent()}},
		limiter:  ratelimit.PerMinute(cfg.RateLimit),
		decoder:  decoder{server: cfg.Server},
		logger:   cfg.Logger,
	}, nil
}

// Close closes the idle connections of the pool.
func (c *Client) Close() error {
	return c.pool.Close()
}

// Stats returns the pool counters.
func (c *Client) Stats() PoolStats {
	return c.pool.Stats()
}

// Format returns the response format requested from the API.
func (c *Client) Format() string { return c.config.Format }

func (c *Client) apiURL() string {
	return "http://" + c.config.Server + "/api/" + APIVersion + "/rest/"
}

// Page selects a page of a listing. Zero values mean the method default.
type Page struct {
	PerPage int
	Page    int
}

func (p Page) values(defaultPerPage int) url.Values {
	perPage, page := p.PerPage, p.Page
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	return url.Values{
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}
}

// withParams adds name=value pairs to the page parameters.
func withParams(page Page, perPage int, kv ...string) url.Values {
	params := page.values(perPage)
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	return params
}

// call runs an API method and decodes the response. Without a token the
// request is a public GET; with one it is signed.
func (c *Client) call(ctx context.Context, method string, token *Token, params url.Values) (*objects, error) {
	resp, err := c.send(ctx, "GET", method, token, params)
	if err != nil {
		return nil, err
	}
	return c.decode(method, resp)
}

// post runs an API method that changes state. It always requires a token.
func (c *Client) post(ctx context.Context, method string, token *Token, params url.Values) (*objects, error) {
	if token == nil {
		return nil, ErrTokenRequired
	}
	resp, err := c.send(ctx, "POST", method, token, params)
	if err != nil {
		return nil, err
	}
	return c.decode(method, resp)
}

func (c *Client) send(ctx context.Context, httpMethod, method string, token *Token, params url.Values) (*evhttp.Response, error) {
	query := url.Values{
		"method":         {method},
		"format":         {c.config.Format},
		"nojsoncallback": {"1"},
	}
	for k, vs := range params {
		query[k] = vs
	}

	if err := c.throttle(ctx); err != nil {
		return nil, fmt.Errorf("eviscape: %s: %w", method, err)
	}
	opts := []evhttp.OpenOption{evhttp.WithRetries(c.config.Retries)}

	if token == nil {
		c.logger.Debugf("eviscape: %s (public)", method)
		resp, err := c.http.Get(ctx, c.apiURL(), query, c.header, opts...)
		if err != nil {
			return nil, fmt.Errorf("eviscape: %s: %w", method, err)
		}
		return resp, nil
	}

	req, err := oauth.NewRequest(httpMethod, c.apiURL(), query)
	if err != nil {
		return nil, err
	}
	c.signer.Sign(req, c.consumer, token)
	c.logger.Debugf("eviscape: %s %s (signed)", httpMethod, method)

	var resp *evhttp.Response
	if httpMethod == "POST" {
		fields := make(evhttp.Fields, len(params))
		for k := range params {
			fields[k] = params.Get(k)
		}
		resp, err = c.http.Post(ctx, req.SignedURL(), fields, c.header, opts...)
	} else {
		resp, err = c.http.Get(ctx, req.SignedURL(), nil, c.header, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("eviscape: %s: %w", method, err)
	}
	return resp, nil
}

// throttle waits until the rate limit allows another call.
func (c *Client) throttle(ctx context.Context) error {
	return c.limiter.Acquire(ctx, 1)
}

func (c *Client) decode(method string, resp *evhttp.Response) (*objects, error) {
	objs, err := c.decoder.decode(c.config.Format, resp.Data)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			apiErr.Method = method
			return nil, apiErr
		}
		return nil, fmt.Errorf("%w (status %d)", err, resp.Status)
	}
	return objs, nil
}

func formBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formID(id int64) string {
	return strconv.FormatInt(id, 10)
}
