package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Amount is a decimal money value. The API may encode it as a JSON number
// or as a decimal string.
type Amount float64

// UnmarshalJSON accepts 12.5 and "12.50".
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// String formats the absolute value with two decimals and a sign.
func (a Amount) String() string {
	if a < 0 {
		return fmt.Sprintf("-$%.2f", -float64(a))
	}
	return fmt.Sprintf("$%.2f", float64(a))
}

// Transaction is one imported account entry.
type Transaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Date            time.Time `json:"date"`
	AccountType     string    `json:"account_type"`
	AccountName     string    `json:"account_name"`
	AccountNumber   *string   `json:"account_number,omitempty"`
	InstitutionName string    `json:"institution_name"`
	Name            string    `json:"name"`
	Amount          Amount    `json:"amount"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Tags            []string  `json:"transaction_tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t Transaction) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required, validation.Match(uuidRe)),
		validation.Field(&t.Date, validation.Required),
	)
}

// UploadSummary is the result of a CSV import.
type UploadSummary struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

func (s UploadSummary) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Success, validation.Min(0)),
		validation.Field(&s.Failed, validation.Min(0)),
	)
}
