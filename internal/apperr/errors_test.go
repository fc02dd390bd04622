package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("get notes: %w", &HTTPError{Status: 401, Body: "unauthorized"})
	if got := StatusCode(err); got != 401 {
		t.Errorf("StatusCode = %d, want 401", got)
	}
}

func TestStatusCode_Distinguishes(t *testing.T) {
	unauthorized := &HTTPError{Status: 401, Body: "unauthorized"}
	internal := &HTTPError{Status: 500, Body: "boom"}

	if StatusCode(unauthorized) == StatusCode(internal) {
		t.Error("401 and 500 should be distinguishable")
	}
	if StatusCode(ErrNoToken) != 0 {
		t.Error("no-token error should carry no status")
	}
	if errors.Is(unauthorized, ErrNoToken) {
		t.Error("HTTP error must not match ErrNoToken")
	}
}

func TestDecodeError_Unwrap(t *testing.T) {
	cause := errors.New("bad field")
	err := &DecodeError{Type: "Note", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("DecodeError should unwrap to its cause")
	}
	if err.Error() != "decode Note: bad field" {
		t.Errorf("Error() = %q", err.Error())
	}
}
