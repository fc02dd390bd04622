package objecturl

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_CreateLookupRevoke(t *testing.T) {
	r := NewRegistry()
	u := r.Create([]byte("img"), "image/png")
	if !strings.HasPrefix(u, Scheme) {
		t.Fatalf("url = %q", u)
	}
	data, ct, ok := r.Lookup(u)
	if !ok || string(data) != "img" || ct != "image/png" {
		t.Errorf("lookup = %q %q %v", data, ct, ok)
	}
	if !r.Revoke(u) {
		t.Error("first revoke should succeed")
	}
	if r.Revoke(u) {
		t.Error("second revoke should report false")
	}
	if r.Len() != 0 {
		t.Errorf("len = %d", r.Len())
	}
	if c, v := r.Stats(); c != 1 || v != 1 {
		t.Errorf("stats = %d/%d", c, v)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	u := r.Create([]byte("pixels"), "image/jpeg")

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/objects/"+ID(u), nil))
	if w.Code != http.StatusOK || w.Body.String() != "pixels" || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("response = %d %q %q", w.Code, w.Body.String(), w.Header().Get("Content-Type"))
	}

	r.Revoke(u)
	w = httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/objects/"+ID(u), nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("revoked status = %d", w.Code)
	}
}
