package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Photo is an uploaded image. Name doubles as the storage key.
type Photo struct {
	Name      string    `json:"name"`
	Caption   string    `json:"caption"`
	AuthorID  string    `json:"author_id"`
	SizeB     int64     `json:"size_b"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Photo) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.SizeB, validation.Min(int64(0))),
	)
}
