package eviscape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	evhttp "github.com/jeffersonwarrior/eviscape/internal/http"
	"github.com/jeffersonwarrior/eviscape/internal/oauth"
)

// DefaultPerms is the permission level asked for by AuthorizationURL.
const DefaultPerms = "write"

func (c *Client) oauthURL(endpoint string) string {
	return "http://" + c.config.Server + "/oauth/" + endpoint
}

// RequestToken asks the server for an unauthorized request token.
// callback may be empty.
func (c *Client) RequestToken(ctx context.Context, callback string) (*Token, error) {
	params := url.Values{}
	if callback != "" {
		params.Set("oauth_callback", callback)
	}
	req, err := oauth.NewRequest("GET", c.oauthURL("request_token"), params)
	if err != nil {
		return nil, err
	}
	c.signer.Sign(req, c.consumer, nil)
	return c.fetchToken(ctx, "request token", req)
}

// AuthorizationURL returns the URL the member opens to authorize token.
// perms defaults to DefaultPerms.
func (c *Client) AuthorizationURL(token *Token, perms string) (string, error) {
	if token == nil {
		return "", ErrTokenRequired
	}
	if perms == "" {
		perms = DefaultPerms
	}
	req, err := oauth.NewRequest("GET", c.oauthURL("authorize"), url.Values{"perms": {perms}})
	if err != nil {
		return "", err
	}
	c.signer.Sign(req, c.consumer, token)
	return req.SignedURL(), nil
}

// AccessToken exchanges an authorized request token for an access token.
func (c *Client) AccessToken(ctx context.Context, requestToken *Token, verifier string) (*Token, error) {
	if requestToken == nil {
		return nil, ErrTokenRequired
	}
	tok := *requestToken
	tok.Verifier = verifier

	req, err := oauth.NewRequest("GET", c.oauthURL("access_token"), nil)
	if err != nil {
		return nil, err
	}
	c.signer.Sign(req, c.consumer, &tok)
	return c.fetchToken(ctx, "access token", req)
}

func (c *Client) fetchToken(ctx context.Context, what string, req *oauth.Request) (*Token, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, fmt.Errorf("eviscape: %s: %w", what, err)
	}
	resp, err := c.http.Get(ctx, req.SignedURL(), nil, c.header, evhttp.WithRetries(c.config.Retries))
	if err != nil {
		return nil, fmt.Errorf("eviscape: %s: %w", what, err)
	}
	if resp.Status != 200 {
		return nil, fmt.Errorf("eviscape: %s: %d %s: %s", what, resp.Status, resp.Reason, bytes.TrimSpace(resp.Data))
	}
	tok, err := oauth.ParseToken(string(resp.Data))
	if err != nil {
		return nil, fmt.Errorf("eviscape: %s: %w", what, err)
	}
	c.logger.Debugf("eviscape: got %s %s", what, tok.Key)
	return tok, nil
}

// IsAuthenticated reports whether token is accepted by the server.
func (c *Client) IsAuthenticated(ctx context.Context, token *Token) (bool, error) {
	if token == nil {
		return false, ErrTokenRequired
	}
	req, err := oauth.NewRequest("GET", c.apiURL(), url.Values{
		"method": {"test.echo"},
		"format": {FormatJSON},
	})
	if err != nil {
		return false, err
	}
	c.signer.Sign(req, c.consumer, token)

	if err := c.throttle(ctx); err != nil {
		return false, fmt.Errorf("eviscape: test.echo: %w", err)
	}
	resp, err := c.http.Get(ctx, req.SignedURL(), nil, c.header, evhttp.WithRetries(c.config.Retries))
	if err != nil {
		return false, fmt.Errorf("eviscape: test.echo: %w", err)
	}
	return bytes.Contains(resp.Data, []byte("auth_checked")), nil
}
