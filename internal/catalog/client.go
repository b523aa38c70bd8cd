// Package catalog talks to the Spotify Web API: OAuth token lifecycle,
// mood-seeded recommendations and user listening history.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultAPIBaseURL is the Spotify Web API root.
const DefaultAPIBaseURL = "https://api.spotify.com/v1/"

// ErrMissingCredentials is returned when the client ID, secret or redirect URI is empty.
var ErrMissingCredentials = errors.New("missing Spotify client ID, client secret or redirect URI")

// DefaultScopes are requested in the authorization-code flow.
var DefaultScopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
}

// Config holds the credentials and endpoints of a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Optional; defaults point at Spotify.
	Scopes     []string
	AuthURL    string
	TokenURL   string
	APIBaseURL string

	// ExpiryMargin is subtracted from a token's lifetime so it is refreshed
	// slightly before Spotify rejects it.
	ExpiryMargin time.Duration
}

// Client is a Spotify catalog client. It caches one access token obtained
// with the client-credentials grant (or the last refreshed user token).
type Client struct {
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
	log        *zap.Logger
	now        func() time.Time
	pickGenres func(n int) []string

	// The cache is last-writer-wins: concurrent callers that see an expired
	// token may each fetch a new one.
	mu          sync.Mutex
	accessToken string
	expiry      time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token and API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithGenrePicker overrides how extra seed genres are chosen.
func WithGenrePicker(pick func(n int) []string) Option {
	return func(c *Client) {
		if pick != nil {
			c.pickGenres = pick
		}
	}
}

// New creates a Client. It returns ErrMissingCredentials unless the client
// ID, secret and redirect URI are all set.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, ErrMissingCredentials
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = spotifyauth.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if !strings.HasSuffix(cfg.APIBaseURL, "/") {
		cfg.APIBaseURL += "/"
	}
	if cfg.ExpiryMargin < 0 {
		cfg.ExpiryMargin = 0
	}

	c := &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        zap.NewNop(),
		now:        time.Now,
		pickGenres: randomGenres,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// oauthContext makes golang.org/x/oauth2 use the client's HTTP client.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// api returns a Web API client authorized with the given bearer token.
func (c *Client) api(accessToken string) *spotify.Client {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})

	hc := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: source,
			Base:   c.httpClient.Transport,
		},
	}

	return spotify.New(hc, spotify.WithBaseURL(c.cfg.APIBaseURL))
}
