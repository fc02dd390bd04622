// Package secureimage displays images that require a bearer token to fetch.
package secureimage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/objecturl"
	"github.com/starford/scribe/internal/resource"
)

var (
	// ErrSuperseded is returned by Show when a later Show or Close replaced it.
	ErrSuperseded = errors.New("secureimage: superseded")
	ErrClosed     = errors.New("secureimage: viewer closed")
)

// ViewPath returns the authenticated API path for a photo.
func ViewPath(name string) string {
	return "/photos/" + url.PathEscape(name) + "/view"
}

// Viewer shows one image at a time. Showing another image, or closing the
// viewer, revokes the object URL of the previous one.
type Viewer struct {
	client  *resource.Client
	tokens  auth.TokenSource
	objects *objecturl.Registry
	logger  *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	name    string
	current string
	closed  bool
}

// NewViewer creates a Viewer that registers fetched images in objects.
func NewViewer(c *resource.Client, tokens auth.TokenSource, objects *objecturl.Registry, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Viewer{client: c, tokens: tokens, objects: objects, logger: logger}
}

// Show fetches name and returns its object URL. No request is made without a
// token. Results of a Show that was superseded are dropped.
func (v *Viewer) Show(ctx context.Context, name string) (string, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return "", ErrClosed
	}
	v.gen++
	gen := v.gen
	v.releaseLocked()
	v.name = name
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()
	defer cancel()

	token, err := v.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("secureimage: token: %w", err)
	}
	if token == "" {
		return "", apperr.ErrNoToken
	}

	blob, err := v.client.GetBlob(ctx, ViewPath(name), token)
	if err != nil {
		v.logger.Warn("secureimage: fetch failed",
			slog.String("name", name),
			slog.Int("status", apperr.StatusCode(err)),
			slog.String("error", err.Error()))
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return "", ErrSuperseded
	}
	v.current = v.objects.Create(blob.Data, blob.ContentType)
	v.cancel = nil
	return v.current, nil
}

// Current returns the image being shown and its object URL, if any.
func (v *Viewer) Current() (name, objectURL string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.name, v.current
}

// Close revokes the current object URL and abandons any fetch in flight.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.gen++
	v.releaseLocked()
	v.name = ""
}

func (v *Viewer) releaseLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.current != "" {
		v.objects.Revoke(v.current)
		v.current = ""
	}
}
