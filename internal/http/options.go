package http

import (
	"github.com/jeffersonwarrior/eviscape/internal/logging"
)

// Config configures the request executor.
type Config struct {
	// Retry configuration
	Retry RetryConfig

	// Hooks for request/response interception
	BeforeRequest BeforeRequestHook // Called before each request attempt
	AfterResponse AfterResponseHook // Called after each completed exchange
	OnError       OnErrorHook       // Called when an attempt fails
	OnRetry       OnRetryHook       // Called before each retry attempt
	OnRedirect    OnRedirectHook    // Called before each followed redirect

	// Logger receives retry and redirect events. Query strings are
	// sanitized before logging.
	Logger logging.Logger
}

// setDefaults fills in default values for zero-valued fields.
func (c *Config) setDefaults() {
	c.Logger = logging.OrDefault(c.Logger)
	c.Retry.setDefaults()
}

// DefaultRetries is the retry budget of a request when WithRetries is not
// given.
const DefaultRetries = 3

type openOptions struct {
	retries  int
	redirect bool
}

// OpenOption customizes a single Open, Get or Post call.
type OpenOption func(*openOptions)

// WithRetries sets the number of retries allowed after the first attempt.
// Each followed redirect also consumes one retry.
func WithRetries(n int) OpenOption {
	return func(o *openOptions) { o.retries = n }
}

// WithRedirect enables or disables following 301, 302, 303 and 307 responses.
func WithRedirect(follow bool) OpenOption {
	return func(o *openOptions) { o.redirect = follow }
}

func newOpenOptions(opts []OpenOption) openOptions {
	o := openOptions{retries: DefaultRetries, redirect: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
