package internal

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/geo"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	logger     *slog.Logger
	out        io.Writer
	tokens     auth.TokenSource
	locator    geo.Locator
	httpClient *http.Client
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the JSON stderr logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithOutput sets where command output is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithTokens overrides the token source described by the auth config.
func WithTokens(ts auth.TokenSource) Option {
	return func(a *application) {
		a.tokens = ts
	}
}

// WithLocator sets how the current position is found when none is cached.
// Defaults to the configured location, if any.
func WithLocator(l geo.Locator) Option {
	return func(a *application) {
		a.locator = l
	}
}

// WithHTTPClient sets the client used for API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *application) {
		a.httpClient = hc
	}
}
