// Package editor runs an edit session: a note is checked out into the local
// workspace, and every change to the file flows through debounced title and
// content fields into the preview and back to the API.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/autosave"
	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/preview"
	"github.com/starford/scribe/internal/sse"
	"github.com/starford/scribe/internal/workspace"
)

// Default quiet periods.
const (
	DefaultTitleDelay   = 300 * time.Millisecond
	DefaultContentDelay = 200 * time.Millisecond
)

// Config tunes a Session.
type Config struct {
	TitleDelay   time.Duration
	ContentDelay time.Duration
}

// Session is one note being edited.
type Session struct {
	api     *backend.API
	ws      *workspace.Workspace
	broker  *sse.Broker
	preview *preview.Server
	logger  *slog.Logger

	note models.Note
	file string

	title   *autosave.Field
	content *autosave.Field

	mu     sync.Mutex
	closed bool
	final  [2]autosave.Snapshot
}

// Open fetches note id, writes it to the workspace and starts its fields.
// ctx bounds the lifetime of background saves.
func Open(ctx context.Context, api *backend.API, ws *workspace.Workspace, broker *sse.Broker, pv *preview.Server, id string, cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.TitleDelay <= 0 {
		cfg.TitleDelay = DefaultTitleDelay
	}
	if cfg.ContentDelay <= 0 {
		cfg.ContentDelay = DefaultContentDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	note, err := api.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("editor: load note %s: %w", id, err)
	}

	s := &Session{
		api:     api,
		ws:      ws,
		broker:  broker,
		preview: pv,
		logger:  logger.With(slog.String("note", note.ID)),
		note:    note,
		file:    workspace.FileName(note.ID),
	}

	data, err := parser.Compose(parser.Document{ID: note.ID, Title: note.Title, Body: note.Content})
	if err != nil {
		return nil, err
	}
	if err := ws.Write(s.file, data); err != nil {
		return nil, fmt.Errorf("editor: checkout: %w", err)
	}

	pv.SetTitle(note.Title)
	if err := pv.SetContent(note.Content); err != nil {
		s.logger.Warn("editor: initial render failed", slog.String("error", err.Error()))
	}

	s.title = autosave.New(ctx, note.Title, s.fieldConfig("title", cfg.TitleDelay, api.PersistTitle(note.ID), pv.SetTitle))
	s.content = autosave.New(ctx, note.Content, s.fieldConfig("content", cfg.ContentDelay, api.PersistContent(note.ID), func(v string) {
		if err := pv.SetContent(v); err != nil {
			s.logger.Warn("editor: render failed", slog.String("error", err.Error()))
		}
	}))
	return s, nil
}

func (s *Session) fieldConfig(name string, delay time.Duration, persist autosave.PersistFunc, mirror func(string)) autosave.Config {
	return autosave.Config{
		Name:    name,
		Delay:   delay,
		Tokens:  s.api.Tokens(),
		Persist: persist,
		Mirror:  mirror,
		OnSaved: func(string) {
			s.broker.PublishSave(sse.AutosaveSaved, name, "")
		},
		OnSkip: func(string) {
			s.broker.PublishSave(sse.AutosaveSkipped, name, apperr.ErrNoToken.Error())
		},
		OnError: func(_ string, err error) {
			s.broker.PublishSave(sse.AutosaveFailed, name, err.Error())
		},
		Logger: s.logger,
	}
}

// Note returns the note as it was when the session opened.
func (s *Session) Note() models.Note { return s.note }

// File returns the absolute path of the checked-out file.
func (s *Session) File() string {
	p, _ := s.ws.Path(s.file)
	return p
}

// Apply feeds new file content into the fields. Content that cannot be
// parsed, that names a different note, or an empty file is ignored.
func (s *Session) Apply(data []byte) {
	if len(bytes.TrimSpace(data)) == 0 {
		// Editors truncate before writing; the real content follows.
		return
	}
	doc, err := parser.Parse(data)
	if err != nil {
		s.logger.Warn("editor: ignoring unreadable file", slog.String("error", err.Error()))
		return
	}
	if doc.ID != "" && doc.ID != s.note.ID {
		s.logger.Warn("editor: ignoring file for another note", slog.String("id", doc.ID))
		return
	}
	if doc.Title != s.title.Value() {
		s.title.Input(doc.Title)
	}
	if doc.Body != s.content.Value() {
		s.content.Input(doc.Body)
	}
}

// Reload applies the file as it is on disk now. It catches writes the
// watcher has not delivered yet, such as one made just before the editor
// exited.
func (s *Session) Reload() error {
	data, err := s.ws.Read(s.file)
	if err != nil {
		return fmt.Errorf("editor: reload: %w", err)
	}
	s.Apply(data)
	return nil
}

// Run watches the checked-out file until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	return s.ws.Watch(ctx, s.logger, func(name string, data []byte) {
		if name == s.file {
			s.Apply(data)
		}
	})
}

// Status returns the state of the title and content fields. After Close it
// keeps returning their final state.
func (s *Session) Status() (title, content autosave.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.final[0], s.final[1]
	}
	return s.title.Snapshot(), s.content.Snapshot()
}

// Close saves anything still pending, then stops both fields. A field left
// unsaved is reported as an error.
func (s *Session) Close(ctx context.Context) error {
	errs := []error{s.title.Flush(ctx), s.content.Flush(ctx)}
	title, content := s.Status()
	s.mu.Lock()
	s.closed = true
	s.final = [2]autosave.Snapshot{title, content}
	s.mu.Unlock()
	s.title.Close()
	s.content.Close()

	for _, f := range []struct {
		name string
		snap autosave.Snapshot
	}{{"title", title}, {"content", content}} {
		if f.snap.Status == autosave.Unsaved {
			errs = append(errs, fmt.Errorf("editor: %s not saved", f.name))
		}
	}
	s.logger.Info("editor: session closed",
		slog.String("title_status", title.Status.String()),
		slog.String("content_status", content.Status.String()))
	return errors.Join(errs...)
}
