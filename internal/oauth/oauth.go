// Package oauth signs requests with OAuth 1.0a HMAC-SHA1 (RFC 5849).
package oauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SignatureMethod is the only supported signature method.
	SignatureMethod = "HMAC-SHA1"

	// Version is the protocol version sent with every request.
	Version = "1.0"
)

// ErrMissingToken is returned when a token response lacks key or secret.
var ErrMissingToken = errors.New("oauth: token response without oauth_token or oauth_token_secret")

// Consumer identifies the application.
type Consumer struct {
	Key    string
	Secret string
}

// Token is a request token or an access token.
type Token struct {
	Key      string
	Secret   string
	Callback string
	Verifier string
}

// ParseToken parses a form-encoded token response such as
// "oauth_token=abc&oauth_token_secret=def".
func ParseToken(s string) (*Token, error) {
	values, err := url.ParseQuery(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("oauth: parse token: %w", err)
	}
	tok := &Token{
		Key:    values.Get("oauth_token"),
		Secret: values.Get("oauth_token_secret"),
	}
	if tok.Key == "" || tok.Secret == "" {
		return nil, ErrMissingToken
	}
	tok.Callback = values.Get("oauth_callback")
	return tok, nil
}

// Encode returns the token in the form accepted by ParseToken.
func (t *Token) Encode() string {
	values := url.Values{
		"oauth_token":        {t.Key},
		"oauth_token_secret": {t.Secret},
	}
	if t.Callback != "" {
		values.Set("oauth_callback", t.Callback)
	}
	return values.Encode()
}

// Request is an HTTP request being signed. Params holds both the protocol
// parameters and the request parameters.
type Request struct {
	Method string
	URL    string // normalized, without query
	Params url.Values
}

// NewRequest creates a request for rawURL. Query parameters of rawURL are
// merged into params.
func NewRequest(method, rawURL string, params url.Values) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("oauth: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("oauth: url %q is not absolute", rawURL)
	}

	merged := make(url.Values)
	for k, vs := range u.Query() {
		merged[k] = append(merged[k], vs...)
	}
	for k, vs := range params {
		merged[k] = append(merged[k], vs...)
	}

	return &Request{
		Method: strings.ToUpper(method),
		URL:    normalizeURL(u),
		Params: merged,
	}, nil
}

// normalizeURL lowercases scheme and host, drops default ports, query and
// fragment.
func normalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// SignedURL returns the URL with every parameter, the signature included,
// in the query string.
func (r *Request) SignedURL() string {
	return r.URL + "?" + encodeParams(r.Params)
}

// Signer adds the OAuth protocol parameters and the signature to requests.
type Signer struct {
	Now   func() time.Time // default: time.Now
	Nonce func() string    // default: uuid.NewString
}

// Sign adds oauth_* parameters to req and signs it with consumer and the
// optional token.
func (s *Signer) Sign(req *Request, consumer Consumer, token *Token) {
	now := time.Now
	if s != nil && s.Now != nil {
		now = s.Now
	}
	nonce := uuid.NewString
	if s != nil && s.Nonce != nil {
		nonce = s.Nonce
	}

	req.Params.Set("oauth_consumer_key", consumer.Key)
	req.Params.Set("oauth_nonce", nonce())
	req.Params.Set("oauth_timestamp", strconv.FormatInt(now().Unix(), 10))
	req.Params.Set("oauth_signature_method", SignatureMethod)
	req.Params.Set("oauth_version", Version)
	req.Params.Del("oauth_signature")

	tokenSecret := ""
	if token != nil {
		req.Params.Set("oauth_token", token.Key)
		tokenSecret = token.Secret
		if token.Verifier != "" {
			req.Params.Set("oauth_verifier", token.Verifier)
		}
	}

	req.Params.Set("oauth_signature", Signature(req.Method, req.URL, req.Params, consumer.Secret, tokenSecret))
}

// Signature computes the HMAC-SHA1 signature of a request. oauth_signature
// in params is ignored.
func Signature(method, normalizedURL string, params url.Values, consumerSecret, tokenSecret string) string {
	key := escape(consumerSecret) + "&" + escape(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(BaseString(method, normalizedURL, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BaseString returns the signature base string of a request.
func BaseString(method, normalizedURL string, params url.Values) string {
	filtered := make(url.Values, len(params))
	for k, vs := range params {
		if k == "oauth_signature" {
			continue
		}
		filtered[k] = vs
	}
	return strings.ToUpper(method) + "&" + escape(normalizedURL) + "&" + escape(encodeParams(filtered))
}

// encodeParams sorts by encoded name then encoded value and joins with &.
func encodeParams(params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{escape(k), escape(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return b.String()
}

// escape percent-encodes s per RFC 3986, leaving only unreserved characters.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}
