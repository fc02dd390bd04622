package resource

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formFile struct {
	field    string
	filename string
	data     []byte
}

// Form is a multipart body under construction.
type Form struct {
	fields [][2]string
	files  []formFile
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Field adds a plain value.
func (f *Form) Field(name, value string) *Form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// File adds a file part. The part content type is sniffed from data.
func (f *Form) File(field, filename string, data []byte) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, data: data})
	return f
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("resource: write field %s: %w", kv[0], err)
		}
	}
	for _, ff := range f.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(ff.field), quoteEscaper.Replace(ff.filename)))
		h.Set("Content-Type", http.DetectContentType(ff.data))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("resource: create part %s: %w", ff.field, err)
		}
		if _, err := part.Write(ff.data); err != nil {
			return nil, "", fmt.Errorf("resource: write part %s: %w", ff.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("resource: close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
