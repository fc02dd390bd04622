// Package workspace manages the local directory where notes are edited as
// plain files.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Ext is the extension of note files.
const Ext = ".md"

// Entry describes one note file.
type Entry struct {
	Name      string
	Checksum  string
	UpdatedAt time.Time
}

// Workspace is a directory of note files. It remembers the checksum of every
// file it wrote or read so that watchers can ignore their own echoes.
type Workspace struct {
	root string // absolute

	mu    sync.Mutex
	known map[string]string
}

// Open returns a workspace rooted at dir, creating it when missing.
func Open(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace: root is not a directory: %s", abs)
	}
	return &Workspace{root: abs, known: make(map[string]string)}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root }

// FileName returns the file name used for note id.
func FileName(id string) string { return id + Ext }

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// safePath resolves name against the root and rejects anything that
// escapes it.
func (w *Workspace) safePath(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if name == "" || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("workspace: invalid path: %q", name)
	}
	abs, err := filepath.Abs(filepath.Join(w.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, w.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("workspace: path escapes root: %s", name)
	}
	return abs, nil
}

// Path returns the absolute path of name.
func (w *Workspace) Path(name string) (string, error) { return w.safePath(name) }

// List returns every note file in the workspace.
func (w *Workspace) List() ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(w.root, p)
		out = append(out, Entry{Name: rel, Checksum: Sum(data), UpdatedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}
	return out, nil
}

// Read returns the content of name.
func (w *Workspace) Read(name string) ([]byte, error) {
	abs, err := w.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (w *Workspace) Write(name string, content []byte) error {
	abs, err := w.safePath(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("workspace: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".scribe-tmp-*")
	if err != nil {
		return fmt.Errorf("workspace: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("workspace: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("workspace: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("workspace: close temp: %w", err)
	}
	// Record before the rename so the watcher already knows the content.
	w.remember(name, Sum(content))
	if err := os.Rename(tmpName, abs); err != nil {
		w.forget(name)
		return fmt.Errorf("workspace: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes name. A missing file is not an error.
func (w *Workspace) Remove(name string) error {
	abs, err := w.safePath(name)
	if err != nil {
		return err
	}
	w.forget(name)
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: delete %s: %w", name, err)
	}
	return nil
}

func (w *Workspace) remember(name, sum string) {
	w.mu.Lock()
	w.known[name] = sum
	w.mu.Unlock()
}

func (w *Workspace) forget(name string) {
	w.mu.Lock()
	delete(w.known, name)
	w.mu.Unlock()
}

// changed records sum for name and reports whether it differs from the
// last known content.
func (w *Workspace) changed(name, sum string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.known[name] == sum {
		return false
	}
	w.known[name] = sum
	return true
}
