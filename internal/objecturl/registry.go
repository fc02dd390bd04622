// Package objecturl hands out short-lived local URLs for in-memory content.
package objecturl

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Scheme prefixes every URL issued by a Registry.
const Scheme = "blob:"

type object struct {
	data        []byte
	contentType string
}

// Registry maps object URLs to content until they are revoked.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]object
	created int
	revoked int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]object)}
}

// Create stores data and returns its URL.
func (r *Registry) Create(data []byte, contentType string) string {
	u := Scheme + uuid.NewString()
	r.mu.Lock()
	r.objects[u] = object{data: data, contentType: contentType}
	r.created++
	r.mu.Unlock()
	return u
}

// Revoke releases u. It reports whether u was live.
func (r *Registry) Revoke(u string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[u]; !ok {
		return false
	}
	delete(r.objects, u)
	r.revoked++
	return true
}

// Lookup returns the content behind a live URL.
func (r *Registry) Lookup(u string) ([]byte, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[u]
	return o.data, o.contentType, ok
}

// Len returns the number of live URLs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Stats returns how many URLs were created and revoked.
func (r *Registry) Stats() (created, revoked int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created, r.revoked
}

// ID returns the identifier part of an object URL.
func ID(u string) string { return strings.TrimPrefix(u, Scheme) }

// Handler serves live objects by identifier. The identifier is read from
// the last path segment.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.URL.Path[strings.LastIndex(req.URL.Path, "/")+1:]
		data, ct, ok := r.Lookup(Scheme + id)
		if !ok {
			http.Error(w, "object revoked", http.StatusNotFound)
			return
		}
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	})
}
