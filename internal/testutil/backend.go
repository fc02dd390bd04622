package testutil

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/scribe/internal/models"
)

// Backend is an in-memory stand-in for the remote API. Every route requires
// a non-empty bearer token, and Token, when set, must match it exactly.
type Backend struct {
	Token   string
	Weather models.Weather

	srv *httptest.Server

	mu           sync.Mutex
	notes        map[string]models.Note
	photos       map[string]models.Photo
	blobs        map[string][]byte
	transactions []models.Transaction
	updates      []NoteWrite
	requests     []string
}

// NoteWrite is one recorded POST /note/{id}.
type NoteWrite struct {
	ID     string
	Update models.NoteUpdate
}

// NewBackend starts a fake API server that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		notes:  make(map[string]models.Note),
		photos: make(map[string]models.Photo),
		blobs:  make(map[string][]byte),
		Weather: models.Weather{
			ID:            uuid.NewString(),
			Location:      "40.7,-74.0",
			Temperature2m: 68.2,
			WeatherCode:   2,
		},
	}
	b.srv = httptest.NewServer(b.router())
	t.Cleanup(b.srv.Close)
	return b
}

// URL returns the server base URL.
func (b *Backend) URL() string { return b.srv.URL }

// AddNote stores a note and returns it.
func (b *Backend) AddNote(title, content string, updated time.Time) models.Note {
	n := models.Note{
		ID:        uuid.NewString(),
		AuthorID:  "user-1",
		Title:     title,
		Content:   content,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
	b.mu.Lock()
	b.notes[n.ID] = n
	b.mu.Unlock()
	return n
}

// Note returns the stored note with id.
func (b *Backend) Note(id string) (models.Note, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notes[id]
	return n, ok
}

// NoteWrites returns every note update received so far.
func (b *Backend) NoteWrites() []NoteWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]NoteWrite(nil), b.updates...)
}

// AddPhoto stores a photo and its content.
func (b *Backend) AddPhoto(name string, data []byte) models.Photo {
	now := time.Now().UTC()
	p := models.Photo{Name: name, AuthorID: "user-1", SizeB: int64(len(data)), CreatedAt: now, UpdatedAt: now}
	b.mu.Lock()
	b.photos[name] = p
	b.blobs[name] = data
	b.mu.Unlock()
	return p
}

// AddTransaction stores a transaction.
func (b *Backend) AddTransaction(tx models.Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	b.mu.Lock()
	b.transactions = append(b.transactions, tx)
	b.mu.Unlock()
}

// Requests returns "METHOD path" for each authorized request.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.authorize)

	r.Get("/notes", b.listNotes)
	r.Post("/notes", b.createNote)
	r.Get("/note/{id}", b.getNote)
	r.Post("/note/{id}", b.updateNote)
	r.Delete("/note/{id}", b.deleteNote)

	r.Get("/photos", b.listPhotos)
	r.Post("/photos", b.uploadPhoto)
	r.Get("/photos/{name}/view", b.viewPhoto)

	r.Get("/transactions", b.listTransactions)
	r.Post("/transactions/upload", b.uploadCSV)

	r.Get("/weather", b.weather)
	return r
}

func (b *Backend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || (b.Token != "" && token != b.Token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) listNotes(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := make([]models.Note, 0, len(b.notes))
	for _, n := range b.notes {
		out = append(out, n)
	}
	b.mu.Unlock()
	// Storage order is unspecified; callers sort.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, out)
}

func (b *Backend) createNote(w http.ResponseWriter, r *http.Request) {
	var in models.NewNote
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, b.AddNote(in.Title, in.Content, time.Now().UTC()))
}

func (b *Backend) getNote(w http.ResponseWriter, r *http.Request) {
	n, ok := b.Note(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "no rows returned", http.StatusInternalServerError)
		return
	}
	writeJSON(w, n)
}

func (b *Backend) updateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd models.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notes[id]
	if !ok {
		http.Error(w, "no rows returned", http.StatusInternalServerError)
		return
	}
	if upd.Title != nil {
		n.Title = *upd.Title
	}
	if upd.Content != nil {
		n.Content = *upd.Content
	}
	n.UpdatedAt = time.Now().UTC()
	b.notes[id] = n
	b.updates = append(b.updates, NoteWrite{ID: id, Update: upd})
	writeJSON(w, n)
}

func (b *Backend) deleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	n, ok := b.notes[id]
	delete(b.notes, id)
	b.mu.Unlock()
	if !ok {
		http.Error(w, "no rows returned", http.StatusInternalServerError)
		return
	}
	writeJSON(w, n)
}

func (b *Backend) listPhotos(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := make([]models.Photo, 0, len(b.photos))
	for _, p := range b.photos {
		out = append(out, p)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, out)
}

func (b *Backend) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer file.Close()
	if !strings.Contains(header.Header.Get("Content-Type"), "image") {
		http.Error(w, "Only image format is supported", http.StatusInternalServerError)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, b.AddPhoto(header.Filename, data))
}

func (b *Backend) viewPhoto(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	data, ok := b.blobs[chi.URLParam(r, "name")]
	b.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

func (b *Backend) listTransactions(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := append([]models.Transaction{}, b.transactions...)
	b.mu.Unlock()
	writeJSON(w, out)
}

// uploadCSV imports rows of date,name,amount[,category]. The header row is
// skipped and row numbers in errors count it.
func (b *Backend) uploadCSV(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("csv")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	rd := csv.NewReader(file)
	rd.FieldsPerRecord = -1
	rows, err := rd.ReadAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summary := models.UploadSummary{Errors: []string{}}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		tx, err := parseRow(row)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		b.AddTransaction(tx)
		summary.Success++
	}
	writeJSON(w, summary)
}

func parseRow(row []string) (models.Transaction, error) {
	if len(row) < 3 {
		return models.Transaction{}, fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}
	date, err := time.Parse("2006-01-02", row[0])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid date %q", row[0])
	}
	var amount models.Amount
	if err := amount.UnmarshalJSON([]byte(row[2])); err != nil {
		return models.Transaction{}, err
	}
	tx := models.Transaction{Date: date, Name: row[1], Amount: amount}
	if len(row) > 3 {
		tx.Category = row[3]
	}
	return tx, nil
}

func (b *Backend) weather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		http.Error(w, "lat and lon are required", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	out := b.Weather
	b.mu.Unlock()
	if q.Get("unit") == models.UnitCelsius {
		out.Temperature2m = (out.Temperature2m - 32) * 5 / 9
	}
	writeJSON(w, out)
}
