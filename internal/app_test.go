package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/geo"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/testutil"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type harness struct {
	app     *App
	backend *testutil.Backend
	out     *bytes.Buffer
	cfg     *Config
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	b := testutil.NewBackend(t)
	dir := t.TempDir()

	cfg := NewDefaultConfig()
	cfg.API.URL = b.URL()
	cfg.API.AssetsURL = "https://assets.example.com"
	cfg.Editor.Workspace = filepath.Join(dir, "workspace")
	cfg.Editor.TitleDebounce = 20 * time.Millisecond
	cfg.Editor.ContentDebounce = 20 * time.Millisecond
	cfg.Store.Path = filepath.Join(dir, "state", "scribe.db")
	cfg.Preview.Port = 0

	out := &bytes.Buffer{}
	base := []Option{
		WithConfig(cfg),
		WithLogger(testutil.QuietLogger()),
		WithOutput(out),
		WithTokens(auth.Static("t")),
	}
	app, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{app: app, backend: b, out: out, cfg: cfg}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNew_AuthFromConfig(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Token = "from-config"
	b.AddNote("hello", "", time.Now())

	cfg := NewDefaultConfig()
	cfg.API.URL = b.URL()
	cfg.Auth = auth.Config{Mode: auth.ModeStatic, Token: "from-config"}
	out := &bytes.Buffer{}
	app, err := New(WithConfig(cfg), WithLogger(testutil.QuietLogger()), WithOutput(out))
	if err != nil {
		t.Fatal(err)
	}
	if err := app.ListNotes(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("output = %q", out.String())
	}
}

func TestListNotes_NewestFirst(t *testing.T) {
	h := newHarness(t)
	base := time.Now().Add(-time.Hour)
	h.backend.AddNote("older", "", base)
	h.backend.AddNote("", "", base.Add(time.Minute))

	if err := h.app.ListNotes(context.Background()); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	iNew, iOld := strings.Index(out, "Untitled"), strings.Index(out, "older")
	if iNew < 0 || iOld < 0 || iNew > iOld {
		t.Errorf("output = %q", out)
	}
}

func TestListNotes_NoToken(t *testing.T) {
	h := newHarness(t, WithTokens(auth.Disabled()))
	err := h.app.ListNotes(context.Background())
	if !errors.Is(err, apperr.ErrNoToken) {
		t.Errorf("err = %v", err)
	}
	if len(h.backend.Requests()) != 0 {
		t.Errorf("requests = %v", h.backend.Requests())
	}
}

func TestShowNote_Raw(t *testing.T) {
	h := newHarness(t)
	n := h.backend.AddNote("Plan", "- step one", time.Now())
	if err := h.app.ShowNote(context.Background(), n.ID, true, 80); err != nil {
		t.Fatal(err)
	}
	if h.out.String() != "# Plan\n\n- step one\n" {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestShowNote_Rendered(t *testing.T) {
	h := newHarness(t)
	n := h.backend.AddNote("Plan", "step **one**", time.Now())
	if err := h.app.ShowNote(context.Background(), n.ID, false, 80); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "Plan") || !strings.Contains(h.out.String(), "one") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestFindNotes(t *testing.T) {
	h := newHarness(t)
	h.backend.AddNote("Groceries", "", time.Now())
	h.backend.AddNote("Meeting notes", "", time.Now())

	if err := h.app.FindNotes(context.Background(), "grc"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "G") || strings.Contains(h.out.String(), "Meeting") {
		t.Errorf("output = %q", h.out.String())
	}

	h.out.Reset()
	if err := h.app.FindNotes(context.Background(), "zzz"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "No notes match") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestNewAndRemoveNote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	n, err := h.app.NewNote(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	stored, ok := h.backend.Note(n.ID)
	if !ok || stored.Title != "Untitled" {
		t.Fatalf("stored = %+v, ok = %v", stored, ok)
	}

	if err := h.app.RemoveNote(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.backend.Note(n.ID); ok {
		t.Error("note not deleted")
	}
}

func TestPhotos(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "cat.png")
	if err := os.WriteFile(src, pngData, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.app.UploadPhoto(ctx, src); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "Uploaded cat.png") {
		t.Errorf("output = %q", h.out.String())
	}

	h.out.Reset()
	if err := h.app.ListPhotos(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "https://assets.example.com/cat.png") {
		t.Errorf("output = %q", h.out.String())
	}

	dest := filepath.Join(dir, "copy.png")
	if err := h.app.ViewPhoto(ctx, "cat.png", ViewOptions{Output: dest}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil || !bytes.Equal(got, pngData) {
		t.Errorf("saved = %q, err = %v", got, err)
	}
}

func TestUploadPhoto_RejectedLocally(t *testing.T) {
	h := newHarness(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := h.app.UploadPhoto(context.Background(), src)
	if !IsReported(err) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(h.out.String(), "unsupported file extension") {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.backend.Requests()) != 0 {
		t.Errorf("requests = %v", h.backend.Requests())
	}
}

func TestFinance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "bank.csv")
	csv := "date,name,amount,category\n2024-03-01,Coffee,-3.50,Food\nbad,row,1\n2024-03-02,Salary,100,Income\n"
	if err := os.WriteFile(src, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.app.UploadCSV(ctx, src); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	if !strings.Contains(out, "Imported 2 transactions, 1 failed") || !strings.Contains(out, "Row 3") {
		t.Errorf("output = %q", out)
	}

	h.out.Reset()
	if err := h.app.ListTransactions(ctx); err != nil {
		t.Fatal(err)
	}
	out = h.out.String()
	if !strings.Contains(out, "Coffee") || !strings.Contains(out, "$96.50") {
		t.Errorf("output = %q", out)
	}
}

func TestWeather(t *testing.T) {
	h := newHarness(t, WithLocator(geo.Fixed(models.Coords{Latitude: 40.7, Longitude: -74.0})))
	if err := h.app.Weather(context.Background(), WeatherOptions{Unit: "c"}); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	if !strings.Contains(out, "20.1°C") || !strings.Contains(out, "partly cloudy") {
		t.Errorf("output = %q", out)
	}
}

func TestWeather_RejectsUnknownUnit(t *testing.T) {
	h := newHarness(t, WithLocator(geo.Fixed(models.Coords{Latitude: 40.7, Longitude: -74.0})))
	err := h.app.Weather(context.Background(), WeatherOptions{Unit: "k"})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(h.backend.Requests()) != 0 {
		t.Errorf("requests = %v", h.backend.Requests())
	}
}

func TestWeather_UnknownLocationMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	err := h.app.Weather(context.Background(), WeatherOptions{})
	if !IsReported(err) {
		t.Fatalf("err = %v", err)
	}
	if len(h.backend.Requests()) != 0 {
		t.Errorf("requests = %v", h.backend.Requests())
	}

	at := models.Coords{Latitude: 51.5, Longitude: -0.12}
	if err := h.app.Weather(context.Background(), WeatherOptions{At: &at}); err != nil {
		t.Fatal(err)
	}
	if got := h.backend.Requests(); len(got) != 1 || got[0] != "GET /weather" {
		t.Errorf("requests = %v", got)
	}
}

func TestWeather_DeniedIsRemembered(t *testing.T) {
	denied := geo.LocatorFunc(func(context.Context) (models.Coords, error) {
		return models.Coords{}, geo.ErrDenied
	})
	h := newHarness(t, WithLocator(denied))
	ctx := context.Background()

	if err := h.app.Weather(ctx, WeatherOptions{}); !IsReported(err) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(h.out.String(), "denied") {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.backend.Requests()) != 0 {
		t.Errorf("requests = %v", h.backend.Requests())
	}
}

func TestEdit_SavesWhatTheEditorWrote(t *testing.T) {
	h := newHarness(t)
	h.cfg.Preview.Host = "127.0.0.1"
	n := h.backend.AddNote("Draft", "before\n", time.Now())

	dir := t.TempDir()
	next, err := parser.Compose(parser.Document{ID: n.ID, Title: "Final", Body: "after\n"})
	if err != nil {
		t.Fatal(err)
	}
	nextPath := filepath.Join(dir, "next.md")
	if err := os.WriteFile(nextPath, next, 0o644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "fake-editor")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncp "+nextPath+" \"$1\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.app.Edit(ctx, n.ID, EditOptions{Command: script}); err != nil {
		t.Fatal(err)
	}

	got, _ := h.backend.Note(n.ID)
	if got.Title != "Final" || got.Content != "after\n" {
		t.Errorf("note = %+v", got)
	}
	if !strings.Contains(h.out.String(), "title clean, content clean") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("EDITOR", "nano")
	h := newHarness(t)

	if got := h.app.editorCommand(EditOptions{}); got != "nano" {
		t.Errorf("fallback = %q", got)
	}
	h.cfg.Editor.Command = "code --wait"
	if got := h.app.editorCommand(EditOptions{}); got != "code --wait" {
		t.Errorf("config = %q", got)
	}
	if got := h.app.editorCommand(EditOptions{Command: "vim"}); got != "vim" {
		t.Errorf("flag = %q", got)
	}
	if got := h.app.editorCommand(EditOptions{Command: "vim", Wait: true}); got != "" {
		t.Errorf("wait = %q", got)
	}
}

func TestPreviewURL(t *testing.T) {
	h := newHarness(t)
	h.cfg.Preview.Host = "0.0.0.0"
	h.cfg.Preview.Port = 8787
	h.cfg.Preview.Token = "s3cret"
	if got := h.app.previewURL("/"); got != "http://localhost:8787/?access_token=s3cret" {
		t.Errorf("url = %q", got)
	}
}
