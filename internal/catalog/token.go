package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenPayload is the token data handed back to the frontend.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthorizationURL returns the Spotify consent URL for the
// authorization-code flow.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a user token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenPayload, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return TokenPayload{}, upstreamError("authorization code exchange", err)
	}

	c.log.Info("exchanged authorization code",
		zap.Duration("expires_in", c.lifetime(tok)),
	)
	return c.payload(tok), nil
}

// EnsureToken returns the cached access token, fetching a new one with the
// client-credentials grant when none is cached or it has expired. A failed
// fetch leaves the cache untouched.
func (c *Client) EnsureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiry := c.accessToken, c.expiry
	c.mu.Unlock()

	if token != "" && c.now().Before(expiry) {
		return token, nil
	}

	cc := &clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tok, err := cc.Token(c.oauthContext(ctx))
	if err != nil {
		c.log.Error("client credentials token request failed", zap.Error(err))
		return "", upstreamError("client credentials token", err)
	}

	c.store(tok)
	c.log.Debug("fetched client credentials token")
	return tok.AccessToken, nil
}

// RefreshUserToken obtains a new user access token. The refreshed token also
// replaces the cached client token.
func (c *Client) RefreshUserToken(ctx context.Context, refreshToken string) (TokenPayload, error) {
	if refreshToken == "" {
		return TokenPayload{}, ErrMissingRefreshToken
	}

	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenPayload{}, upstreamError("token refresh", err)
	}

	c.store(tok)
	c.log.Info("refreshed user token")
	return c.payload(tok), nil
}

// store caches tok, expiring it ExpiryMargin before Spotify would.
func (c *Client) store(tok *oauth2.Token) {
	lifetime := c.lifetime(tok)
	if lifetime > c.cfg.ExpiryMargin {
		lifetime -= c.cfg.ExpiryMargin
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.expiry = c.now().Add(lifetime)
	c.mu.Unlock()
}

// lifetime is the token's expires_in as a duration, zero when unknown.
// oauth2 only fills ExpiresIn on some grants, so the raw response field is
// read next. Expiry is set from the wall clock and is measured against it.
func (c *Client) lifetime(tok *oauth2.Token) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if secs, ok := expiresIn(tok.Extra("expires_in")); ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			return d
		}
	}
	return 0
}

// expiresIn converts the raw expires_in value of a token response.
func expiresIn(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func (c *Client) payload(tok *oauth2.Token) TokenPayload {
	p := TokenPayload{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    int64(c.lifetime(tok) / time.Second),
		RefreshToken: tok.RefreshToken,
	}
	if p.TokenType == "" {
		p.TokenType = "Bearer"
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		p.Scope = scope
	}
	return p
}
