// Package internal wires the application together and implements its
// commands.
package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/geo"
	"github.com/starford/scribe/internal/localstore"
	"github.com/starford/scribe/internal/resource"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// App holds the request coordinator and the services every command shares.
// It is built once per process; nothing in it is a package-level singleton.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	out     io.Writer
	client  *resource.Client
	tokens  auth.TokenSource
	api     *backend.API
	locator geo.Locator
}

// New builds the application from the given options.
func New(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		// stdout carries command output, so logs go to stderr.
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	out := app.out
	if out == nil {
		out = os.Stdout
	}

	tokens := app.tokens
	if tokens == nil {
		ts, err := auth.FromConfig(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("init auth: %w", err)
		}
		tokens = ts
	}

	hc := app.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.API.Timeout}
	}
	client, err := resource.New(cfg.API.URL, resource.WithHTTPClient(hc), resource.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	locator := app.locator
	if locator == nil {
		if coords, ok := cfg.Location.Coords(); ok {
			locator = geo.Fixed(coords)
		}
	}

	logger.Debug("Configuration loaded",
		slog.String("api_url", client.BaseURL()),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("workspace", cfg.Editor.Workspace),
		slog.String("store_path", cfg.Store.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		client:  client,
		tokens:  tokens,
		api:     backend.New(client, tokens, cfg.API.AssetsURL, logger),
		locator: locator,
	}, nil
}

// API returns the typed remote API.
func (a *App) API() *backend.API { return a.api }

// openStore opens the local key-value store, creating its directory.
func (a *App) openStore() (*localstore.DB, error) {
	if dir := filepath.Dir(a.cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := localstore.Open(a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return db, nil
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *App) header(s string) {
	a.printf("%s\n", headerStyle.Render(s))
}

// errFailed is returned after a failure has already been reported to the
// user, so the CLI exits non-zero without printing it twice.
var errFailed = errors.New("command failed")

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool { return errors.Is(err, errFailed) }
