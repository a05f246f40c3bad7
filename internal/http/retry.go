package http

import (
	"errors"
	"math"
	"math/rand"
	"net"
	"net/url"
	"os"
	"time"
)

// RetryConfig configures the delay between retries of broken connections.
// A zero BaseDelay retries immediately.
type RetryConfig struct {
	BaseDelay     time.Duration // Delay before the first retry (default: 0)
	MaxDelay      time.Duration // Maximum delay between retries (default: 60s, never below BaseDelay)
	Multiplier    float64       // Backoff multiplier (default: 2.0)
	JitterPercent float64       // Jitter as a percentage (default: 0.1 = 10%)
}

// setDefaults fills in default values for zero-valued fields.
func (r *RetryConfig) setDefaults() {
	if r.MaxDelay == 0 {
		r.MaxDelay = 60 * time.Second
	}
	if r.MaxDelay < r.BaseDelay {
		r.MaxDelay = r.BaseDelay
	}
	if r.Multiplier == 0 {
		r.Multiplier = 2.0
	}
	if r.JitterPercent == 0 {
		r.JitterPercent = 0.1
	}
}

// isTimeout reports whether a transport error is a socket timeout.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isRedirect reports whether status is one of the followed redirect codes.
func isRedirect(status int) bool {
	switch status {
	case 301, 302, 303, 307:
		return true
	default:
		return false
	}
}

// calculateBackoff computes the delay before retry number attempt (0-indexed)
// using exponential backoff with jitter.
//
// Formula: delay = min(baseDelay * multiplier^attempt, maxDelay)
// Jitter: delay *= (1 ± jitterPercent)
func calculateBackoff(cfg *RetryConfig, attempt int) time.Duration {
	if cfg.BaseDelay == 0 || cfg.Multiplier == 0 {
		return 0
	}

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterPercent > 0 {
		jitter := (rand.Float64()*2 - 1) * cfg.JitterPercent
		delay = delay * (1 + jitter)

		if delay < 0 {
			delay = 0
		}
		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// secretParams are query parameters masked in log output.
var secretParams = []string{"oauth_signature", "oauth_token", "oauth_verifier"}

// sanitizeURL masks OAuth secrets in the query string of rawURL for logging.
func sanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, name := range secretParams {
		if v := q.Get(name); v != "" {
			q.Set(name, sanitizeSecret(v))
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// sanitizeSecret masks sensitive parts of a secret for logging.
// Format: "nnch734d00sl2jdk" -> "nnc***0sl2jdk"
func sanitizeSecret(key string) string {
	keyLen := len(key)

	if keyLen <= 5 {
		return "***" + key[max(0, keyLen-2):]
	}

	if keyLen <= 10 {
		return key[:3] + "***" + key[keyLen-3:]
	}

	return key[:3] + "***" + key[keyLen-7:]
}
