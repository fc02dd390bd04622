package geo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/localstore"
	"github.com/starford/scribe/internal/models"
)

func testCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	db, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(db)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_FreshAndStale(t *testing.T) {
	c, now := testCache(t)
	nyc := models.Coords{Latitude: 40.7, Longitude: -74.0}

	if _, err := c.Lookup(); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty cache err = %v", err)
	}
	if err := c.Save(nyc); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(59 * time.Second)
	got, err := c.Lookup()
	if err != nil || got != nyc {
		t.Errorf("fresh lookup = %+v, %v", got, err)
	}
	*now = now.Add(time.Second)
	if _, err := c.Lookup(); !errors.Is(err, ErrStale) {
		t.Errorf("60s old entry err = %v, want stale", err)
	}
}

func TestCache_Denied(t *testing.T) {
	c, _ := testCache(t)
	if err := c.Deny(); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := c.store.Get(Key)
	if raw != "denied" {
		t.Errorf("stored = %q", raw)
	}
	if _, err := c.Lookup(); !errors.Is(err, ErrDenied) {
		t.Errorf("err = %v", err)
	}

	called := false
	_, err := c.Resolve(context.Background(), LocatorFunc(func(context.Context) (models.Coords, error) {
		called = true
		return models.Coords{}, nil
	}))
	if !errors.Is(err, ErrDenied) || called {
		t.Errorf("Resolve after refusal: err=%v called=%v", err, called)
	}
}

func TestCache_ResolveAsksLocatorWhenStale(t *testing.T) {
	c, now := testCache(t)
	_ = c.Save(models.Coords{Latitude: 1, Longitude: 1})
	*now = now.Add(2 * time.Minute)

	want := models.Coords{Latitude: 51.5, Longitude: -0.1}
	got, err := c.Resolve(context.Background(), Fixed(want))
	if err != nil || got != want {
		t.Fatalf("Resolve = %+v, %v", got, err)
	}
	if cached, err := c.Lookup(); err != nil || cached != want {
		t.Errorf("cache not refreshed: %+v, %v", cached, err)
	}
}

func TestCache_ResolveRemembersRefusal(t *testing.T) {
	c, _ := testCache(t)
	deny := LocatorFunc(func(context.Context) (models.Coords, error) { return models.Coords{}, ErrDenied })
	if _, err := c.Resolve(context.Background(), deny); !errors.Is(err, ErrDenied) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.Lookup(); !errors.Is(err, ErrDenied) {
		t.Errorf("refusal not stored: %v", err)
	}
	if err := c.Forget(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Lookup(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after Forget err = %v", err)
	}
}

func TestCache_SaveRejectsInvalid(t *testing.T) {
	c, _ := testCache(t)
	var ve *apperr.ValidationError
	if err := c.Save(models.Coords{Latitude: 200}); !errors.As(err, &ve) {
		t.Errorf("err = %v", err)
	}
}
