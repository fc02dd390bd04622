package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/apperr"
)

// Decode parses raw into T and validates it. Types implementing
// validation.Validatable, and slices or maps of them, are checked element by
// element; anything else is only parsed.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	name := fmt.Sprintf("%T", out)
	if len(raw) == 0 {
		return out, &apperr.DecodeError{Type: name, Cause: errors.New("empty payload")}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &apperr.DecodeError{Type: name, Cause: err}
	}
	if err := validation.Validate(out); err != nil {
		var zero T
		return zero, &apperr.DecodeError{Type: name, Cause: err}
	}
	return out, nil
}

// GetJSON fetches path and decodes the payload into T.
func GetJSON[T any](ctx context.Context, c *Client, path, token string) (T, error) {
	raw, err := c.Get(ctx, path, token)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}

// PostJSON posts body to path and decodes the payload into T.
func PostJSON[T any](ctx context.Context, c *Client, path, token string, body any) (T, error) {
	raw, err := c.Post(ctx, path, token, body)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}

// PostFormJSON posts a multipart form to path and decodes the payload into T.
func PostFormJSON[T any](ctx context.Context, c *Client, path, token string, form *Form) (T, error) {
	raw, err := c.PostForm(ctx, path, token, form)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}
