// Package models defines the payloads exchanged with the remote API.
package models

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Note is a markdown document owned by a user.
type Note struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields the client relies on.
func (n Note) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required, validation.Match(uuidRe)),
		validation.Field(&n.UpdatedAt, validation.Required),
	)
}

// NewNote is the body for creating a note.
type NewNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate requires a title.
func (n NewNote) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required),
	)
}

// NoteUpdate is a partial update; nil fields are left untouched.
type NoteUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate requires at least one field.
func (u NoteUpdate) Validate() error {
	if u.Title == nil && u.Content == nil {
		return validation.NewError("validation_update_empty", "update must set title or content")
	}
	return nil
}
