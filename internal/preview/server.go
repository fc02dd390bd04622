// Package preview serves a live rendered view of the note being edited.
package preview

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/scribe/internal/objecturl"
	"github.com/starford/scribe/internal/sse"
)

//go:embed page.html
var pageHTML string

var pageTmpl = template.Must(template.New("page").Parse(pageHTML))

// Document is the state shown on the preview page.
type Document struct {
	NoteID    string    `json:"id"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	HTML      string    `json:"html"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires callers of the data endpoints to present token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server holds the preview document and publishes its changes.
type Server struct {
	broker  *sse.Broker
	objects *objecturl.Registry
	md      goldmark.Markdown
	token   string
	logger  *slog.Logger

	mu  sync.RWMutex
	doc Document
}

// NewServer creates a preview server for note id.
func NewServer(noteID string, broker *sse.Broker, objects *objecturl.Registry, opts ...Option) *Server {
	s := &Server{
		broker:  broker,
		objects: objects,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:  slog.Default(),
		doc:     Document{NoteID: noteID},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Document returns the current preview state.
func (s *Server) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// SetTitle replaces the title and notifies clients.
func (s *Server) SetTitle(title string) {
	s.mu.Lock()
	s.doc.Title = title
	s.doc.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.broker.Publish(sse.Event{Type: sse.TitleUpdated, Data: map[string]string{"title": title}})
}

// SetContent renders markdown, stores it and notifies clients.
func (s *Server) SetContent(markdown string) error {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return fmt.Errorf("preview: render: %w", err)
	}
	s.mu.Lock()
	s.doc.Markdown = markdown
	s.doc.HTML = buf.String()
	s.doc.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.broker.Publish(sse.Event{Type: sse.PreviewUpdated, Data: map[string]string{"html": buf.String()}})
	return nil
}

// Router returns the HTTP routes of the preview server.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", s.page)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.token))
		r.Get("/api/preview", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.Document())
		})
		r.Get("/api/events", s.broker.ServeHTTP)
		r.Get("/objects/{id}", s.objects.Handler().ServeHTTP)
	})
	return r
}

func (s *Server) page(w http.ResponseWriter, _ *http.Request) {
	doc := s.Document()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTmpl.Execute(w, map[string]any{
		"Title": doc.Title,
		"HTML":  template.HTML(doc.HTML), //nolint:gosec // rendered without raw HTML passthrough
	})
	if err != nil {
		s.logger.Error("preview: render page", slog.String("error", err.Error()))
	}
}

// AuthMiddleware checks a bearer token from the Authorization header or,
// for EventSource clients that cannot set headers, the access_token query
// parameter. An empty token disables the check.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				got = r.URL.Query().Get("access_token")
			}
			if got != token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
