package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/query"
)

// get runs a one-shot query for path and waits for its outcome.
func get[T any](ctx context.Context, a *App, path string) (T, error) {
	q := query.New(query.JSON[T](a.client), a.tokens, query.WithLogger(a.logger))
	defer q.Close()

	q.Update(ctx, path, true)
	st, err := q.Await(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if st.Status == query.Error {
		return st.Data, st.Err
	}
	return st.Data, nil
}

func (a *App) notes(ctx context.Context) ([]models.Note, error) {
	notes, err := get[[]models.Note](ctx, a, backend.NotesPath)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	backend.SortNotes(notes)
	return notes, nil
}

// ListNotes prints every note, most recently updated first.
func (a *App) ListNotes(ctx context.Context) error {
	notes, err := a.notes(ctx)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		a.printf("%s\n", dimStyle.Render("No notes yet. Create one with `scribe notes new`."))
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", headerStyle.Render("ID"), headerStyle.Render("TITLE"), headerStyle.Render("UPDATED"))
	for _, n := range notes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID, displayTitle(n.Title), humanize.Time(n.UpdatedAt))
	}
	return tw.Flush()
}

// ShowNote prints a note rendered for the terminal, or as markdown when raw
// is set.
func (a *App) ShowNote(ctx context.Context, id string, raw bool, width int) error {
	note, err := get[models.Note](ctx, a, backend.NotePath(id))
	if err != nil {
		return fmt.Errorf("show note: %w", err)
	}

	doc := fmt.Sprintf("# %s\n\n%s\n", displayTitle(note.Title), note.Content)
	if raw {
		a.printf("%s", doc)
		return nil
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("show note: %w", err)
	}
	out, err := r.Render(doc)
	if err != nil {
		return fmt.Errorf("show note: render: %w", err)
	}
	a.printf("%s%s\n", out, dimStyle.Render("  updated "+humanize.Time(note.UpdatedAt)))
	return nil
}

// FindNotes prints notes whose titles fuzzily match pattern, best first.
func (a *App) FindNotes(ctx context.Context, pattern string) error {
	notes, err := a.notes(ctx)
	if err != nil {
		return err
	}
	titles := make([]string, len(notes))
	for i, n := range notes {
		titles[i] = displayTitle(n.Title)
	}

	matches := fuzzy.Find(pattern, titles)
	if len(matches) == 0 {
		a.printf("%s\n", dimStyle.Render(fmt.Sprintf("No notes match %q.", pattern)))
		return nil
	}
	for _, m := range matches {
		a.printf("%s  %s\n", notes[m.Index].ID, highlight(m.Str, m.MatchedIndexes))
	}
	return nil
}

// NewNote creates a note and prints its id.
func (a *App) NewNote(ctx context.Context, title, content string) (models.Note, error) {
	note, err := a.api.CreateNote(ctx, models.NewNote{Title: title, Content: content})
	if err != nil {
		return note, fmt.Errorf("create note: %w", err)
	}
	a.logger.Info("note created", slog.String("id", note.ID))
	a.printf("%s %s\n", successStyle.Render("Created"), note.ID)
	return note, nil
}

// RemoveNote deletes a note.
func (a *App) RemoveNote(ctx context.Context, id string) error {
	note, err := a.api.DeleteNote(ctx, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	a.logger.Info("note deleted", slog.String("id", id))
	a.printf("%s %s\n", successStyle.Render("Deleted"), displayTitle(note.Title))
	return nil
}

func displayTitle(t string) string {
	if strings.TrimSpace(t) == "" {
		return backend.Untitled
	}
	return t
}

// highlight emphasises the runes of s at the matched byte offsets.
func highlight(s string, idx []int) string {
	if len(idx) == 0 {
		return s
	}
	matched := make(map[int]bool, len(idx))
	for _, i := range idx {
		matched[i] = true
	}
	var b strings.Builder
	for i, r := range s {
		if matched[i] {
			b.WriteString(headerStyle.Render(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
