// Package parser reads and writes the on-disk form of a note: a YAML
// frontmatter block carrying the note's id and title, followed by the
// markdown body.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

	// ErrMalformed means the frontmatter block could not be read.
	ErrMalformed = errors.New("parser: malformed frontmatter")
)

type frontmatter struct {
	ID    string   `yaml:"id"`
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags,omitempty"`
}

// Document is a parsed note file.
type Document struct {
	ID    string
	Title string
	Body  string
	Tags  []string
	Links []string
}

// Parse splits data into frontmatter and body. A file without frontmatter
// is all body. An unterminated or invalid block yields ErrMalformed so that
// a half-typed header is never mistaken for content.
func Parse(data []byte) (*Document, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:    fm.ID,
		Title: fm.Title,
		Body:  body,
		Tags:  extractTags(body, fm.Tags),
		Links: extractLinks(body),
	}, nil
}

// Compose renders a document in the form Parse reads.
func Compose(d Document) ([]byte, error) {
	head, err := yaml.Marshal(frontmatter{ID: d.ID, Title: d.Title})
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

func splitFrontmatter(data []byte) (frontmatter, string, error) {
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, "", ErrMalformed
	}

	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	// Only the newline ending the closing delimiter belongs to the header.
	after = bytes.TrimPrefix(after, []byte("\r"))
	after = bytes.TrimPrefix(after, []byte("\n"))

	if err := yaml.Unmarshal(block, &fm); err != nil {
		return frontmatter{}, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fm, string(after), nil
}

// Links returns the wikilink targets in body.
func Links(body string) []string { return extractLinks(body) }

// Tags returns the inline #tags in body.
func Tags(body string) []string { return extractTags(body, nil) }

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] → Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags merges frontmatter tags with inline #tags, frontmatter first.
func extractTags(body string, declared []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range declared {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
