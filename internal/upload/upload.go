// Package upload validates files before they are sent to the API and
// reports outcomes as toast-style results.
package upload

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/scribe/internal/apperr"
)

const (
	MaxPhotoSize = 5 << 20  // 5 MB
	MaxCSVSize   = 10 << 20 // 10 MB
)

// Result types.
const (
	TypeSuccess = "success"
	TypeError   = "error"
)

var (
	imageExtensions = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".webp": "image/webp",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Result is the user-facing outcome of an upload.
type Result struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Success returns a success result.
func Success(msg string) Result { return Result{Type: TypeSuccess, Message: msg} }

// Failure returns an error result.
func Failure(msg string) Result { return Result{Type: TypeError, Message: msg} }

// FailureFrom turns err into an error result.
func FailureFrom(err error) Result { return Failure(err.Error()) }

// OK reports whether r is a success.
func (r Result) OK() bool { return r.Type == TypeSuccess }

// File is an upload candidate.
type File struct {
	Name string
	Data []byte
}

// Size returns the file length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Open reads path, refusing anything larger than limit+1 bytes so that the
// size check still sees an oversized file.
func Open(path string, limit int64) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("upload: open: %w", err)
	}
	defer fh.Close()
	data, err := io.ReadAll(io.LimitReader(fh, limit+1))
	if err != nil {
		return File{}, fmt.Errorf("upload: read: %w", err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// CheckPhoto validates an image upload and returns it with a sanitized name.
func CheckPhoto(f File) (File, error) {
	if f.Size() > MaxPhotoSize {
		return f, &apperr.ValidationError{Message: "File size must be less than 5MB"}
	}
	f.Name = SanitizeFilename(f.Name)
	ext := strings.ToLower(filepath.Ext(f.Name))
	want, ok := imageExtensions[ext]
	if !ok {
		return f, &apperr.ValidationError{Message: fmt.Sprintf("unsupported file extension: %q (allowed: png, jpg, jpeg, gif, webp)", ext)}
	}
	detected := strings.Split(http.DetectContentType(f.Data), ";")[0]
	if detected != want {
		return f, &apperr.ValidationError{Message: fmt.Sprintf("content does not match extension %s (detected: %s)", ext, detected)}
	}
	return f, nil
}

// CheckCSV validates a transactions import.
func CheckCSV(f File) error {
	if !strings.HasSuffix(f.Name, ".csv") {
		return &apperr.ValidationError{Message: "File must be a CSV"}
	}
	if f.Size() > MaxCSVSize {
		return &apperr.ValidationError{Message: "File size must be less than 10MB"}
	}
	return nil
}

// SanitizeFilename strips directories and unsafe characters.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "_" {
		name = uuid.NewString()
	}
	return name
}
