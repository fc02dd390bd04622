// Package backend binds the remote API's endpoints to typed calls.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/autosave"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/resource"
	"github.com/starford/scribe/internal/upload"
)

// Endpoint paths.
const (
	NotesPath        = "/notes"
	PhotosPath       = "/photos"
	TransactionsPath = "/transactions"
	CSVUploadPath    = "/transactions/upload"
)

// Untitled is the title of a freshly created note.
const Untitled = "Untitled"

// NotePath returns the path of a single note.
func NotePath(id string) string { return "/note/" + url.PathEscape(id) }

// WeatherPath returns the weather query for coords in unit.
func WeatherPath(c models.Coords, unit string) string {
	if unit == "" {
		unit = models.UnitFahrenheit
	}
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	v.Set("unit", unit)
	return "/weather?" + v.Encode()
}

// SortNotes orders notes by most recently updated first.
func SortNotes(notes []models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
}

// API issues authenticated calls for each resource.
type API struct {
	client    *resource.Client
	tokens    auth.TokenSource
	assetsURL string
	logger    *slog.Logger
}

// New creates an API. assetsURL is the public base for photo files.
func New(c *resource.Client, tokens auth.TokenSource, assetsURL string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{client: c, tokens: tokens, assetsURL: strings.TrimSuffix(assetsURL, "/"), logger: logger}
}

// Client returns the underlying resource client.
func (a *API) Client() *resource.Client { return a.client }

// Tokens returns the token source.
func (a *API) Tokens() auth.TokenSource { return a.tokens }

// token resolves a bearer token. No token means no request.
func (a *API) token(ctx context.Context) (string, error) {
	t, err := a.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("backend: token: %w", err)
	}
	if t == "" {
		return "", apperr.ErrNoToken
	}
	return t, nil
}

// ListNotes returns the user's notes, most recently updated first.
func (a *API) ListNotes(ctx context.Context) ([]models.Note, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := resource.GetJSON[[]models.Note](ctx, a.client, NotesPath, token)
	if err != nil {
		return nil, err
	}
	SortNotes(notes)
	return notes, nil
}

// GetNote returns a single note.
func (a *API) GetNote(ctx context.Context, id string) (models.Note, error) {
	token, err := a.token(ctx)
	if err != nil {
		return models.Note{}, err
	}
	return resource.GetJSON[models.Note](ctx, a.client, NotePath(id), token)
}

// CreateNote creates a note. A zero NewNote creates an untitled, empty note.
func (a *API) CreateNote(ctx context.Context, in models.NewNote) (models.Note, error) {
	if in.Title == "" {
		in.Title = Untitled
	}
	if err := in.Validate(); err != nil {
		return models.Note{}, &apperr.ValidationError{Message: err.Error()}
	}
	token, err := a.token(ctx)
	if err != nil {
		return models.Note{}, err
	}
	return resource.PostJSON[models.Note](ctx, a.client, NotesPath, token, in)
}

// UpdateNote applies a partial update.
func (a *API) UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (models.Note, error) {
	token, err := a.token(ctx)
	if err != nil {
		return models.Note{}, err
	}
	return a.updateNote(ctx, token, id, upd)
}

func (a *API) updateNote(ctx context.Context, token, id string, upd models.NoteUpdate) (models.Note, error) {
	if err := upd.Validate(); err != nil {
		return models.Note{}, &apperr.ValidationError{Message: err.Error()}
	}
	return resource.PostJSON[models.Note](ctx, a.client, NotePath(id), token, upd)
}

// PersistTitle returns an autosave writer for the title of note id.
func (a *API) PersistTitle(id string) autosave.PersistFunc {
	return func(ctx context.Context, token, v string) error {
		_, err := a.updateNote(ctx, token, id, models.NoteUpdate{Title: &v})
		return err
	}
}

// PersistContent returns an autosave writer for the body of note id.
func (a *API) PersistContent(id string) autosave.PersistFunc {
	return func(ctx context.Context, token, v string) error {
		_, err := a.updateNote(ctx, token, id, models.NoteUpdate{Content: &v})
		return err
	}
}

// DeleteNote deletes a note and returns it as it was.
func (a *API) DeleteNote(ctx context.Context, id string) (models.Note, error) {
	token, err := a.token(ctx)
	if err != nil {
		return models.Note{}, err
	}
	raw, err := a.client.Delete(ctx, NotePath(id), token)
	if err != nil {
		return models.Note{}, err
	}
	if raw == nil {
		return models.Note{ID: id}, nil
	}
	return resource.Decode[models.Note](raw)
}

// ListPhotos returns the user's photos.
func (a *API) ListPhotos(ctx context.Context) ([]models.Photo, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	return resource.GetJSON[[]models.Photo](ctx, a.client, PhotosPath, token)
}

// PublicURL returns the unauthenticated asset URL of a photo.
func (a *API) PublicURL(name string) string {
	return a.assetsURL + "/" + url.PathEscape(name)
}

// UploadPhoto validates and uploads an image. Failures of any kind are
// reported in the result rather than returned.
func (a *API) UploadPhoto(ctx context.Context, f upload.File) upload.Result {
	f, err := upload.CheckPhoto(f)
	if err != nil {
		return upload.FailureFrom(err)
	}
	token, err := a.token(ctx)
	if err != nil {
		return upload.FailureFrom(err)
	}
	form := resource.NewForm().File("photo", f.Name, f.Data)
	photo, err := resource.PostFormJSON[models.Photo](ctx, a.client, PhotosPath, token, form)
	if err != nil {
		a.logger.Warn("backend: photo upload failed", slog.String("name", f.Name), slog.String("error", err.Error()))
		return upload.FailureFrom(err)
	}
	return upload.Success(fmt.Sprintf("Uploaded %s (%s)", photo.Name, humanize.Bytes(uint64(photo.SizeB))))
}

// ListTransactions returns the user's transactions.
func (a *API) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	return resource.GetJSON[[]models.Transaction](ctx, a.client, TransactionsPath, token)
}

// UploadCSV validates and imports a transactions file. The summary is nil
// unless the server accepted the file.
func (a *API) UploadCSV(ctx context.Context, f upload.File) (upload.Result, *models.UploadSummary) {
	if err := upload.CheckCSV(f); err != nil {
		return upload.FailureFrom(err), nil
	}
	token, err := a.token(ctx)
	if err != nil {
		return upload.FailureFrom(err), nil
	}
	form := resource.NewForm().File("csv", f.Name, f.Data)
	sum, err := resource.PostFormJSON[models.UploadSummary](ctx, a.client, CSVUploadPath, token, form)
	if err != nil {
		a.logger.Warn("backend: csv upload failed", slog.String("name", f.Name), slog.String("error", err.Error()))
		return upload.FailureFrom(err), nil
	}
	msg := fmt.Sprintf("Imported %d transactions", sum.Success)
	if sum.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", sum.Failed)
	}
	return upload.Success(msg), &sum
}

// GetWeather returns current conditions at c.
func (a *API) GetWeather(ctx context.Context, c models.Coords, unit string) (models.Weather, error) {
	if err := c.Validate(); err != nil {
		return models.Weather{}, &apperr.ValidationError{Message: err.Error()}
	}
	token, err := a.token(ctx)
	if err != nil {
		return models.Weather{}, err
	}
	return resource.GetJSON[models.Weather](ctx, a.client, WeatherPath(c, unit), token)
}
