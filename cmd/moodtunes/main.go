// Command moodtunes serves mood detection and Spotify recommendations over HTTP.
package main

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/justestif/moodtunes/internal/catalog"
	"github.com/justestif/moodtunes/internal/config"
	"github.com/justestif/moodtunes/internal/emotion"
	"github.com/justestif/moodtunes/internal/sentiment"
	"github.com/justestif/moodtunes/internal/web"
	webfs "github.com/justestif/moodtunes/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	classifier := emotion.NewClassifier(
		sentiment.New(logger.Named("sentiment")),
		logger.Named("emotion"),
	)

	spotify, err := catalog.New(catalog.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURI:  cfg.SpotifyRedirectURI,
		ExpiryMargin: cfg.TokenMargin,
	},
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		catalog.WithLogger(logger.Named("catalog")),
	)
	if err != nil {
		return fmt.Errorf("creating catalog client: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr,
		FrontendURL: cfg.FrontendURL,
		CORSOrigins: cfg.CORSOrigins,
		TemplatesFS: templates,
		StaticFS:    static,
		Emotions:    classifier,
		Catalog:     spotify,
		Logger:      logger.Named("web"),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// newLogger builds a production (json) or development (console) logger.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = lvl

	return cfg.Build()
}
