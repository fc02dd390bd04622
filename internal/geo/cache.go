// Package geo remembers the user's last known position.
//
// The position lives under a single key. The stored value is either a JSON
// object with coordinates and the time they were captured, or the literal
// "denied" once the user refused to share a location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/localstore"
	"github.com/starford/scribe/internal/models"
)

const (
	// Key is the storage key of the cached position.
	Key = "location"
	// Denied is stored instead of coordinates after a refusal.
	Denied = "denied"
	// MaxAge is how long a cached position stays fresh.
	MaxAge = 60 * time.Second
)

var (
	ErrDenied = errors.New("geo: location access denied")
	ErrStale  = errors.New("geo: cached location is stale")
)

type entry struct {
	models.Coords
	Time time.Time `json:"time"`
}

// Locator produces the current position.
type Locator interface {
	Locate(ctx context.Context) (models.Coords, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (models.Coords, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (models.Coords, error) { return f(ctx) }

// Fixed returns a Locator that always reports c.
func Fixed(c models.Coords) Locator {
	return LocatorFunc(func(context.Context) (models.Coords, error) { return c, nil })
}

// Cache reads and writes the cached position.
type Cache struct {
	store  localstore.Store
	maxAge time.Duration
	now    func() time.Time
}

// NewCache returns a Cache over store with the default MaxAge.
func NewCache(store localstore.Store) *Cache {
	return &Cache{store: store, maxAge: MaxAge, now: time.Now}
}

// Lookup returns a fresh cached position. It fails with apperr.ErrNotFound
// when nothing is cached, ErrStale when the entry is too old and ErrDenied
// after a refusal.
func (c *Cache) Lookup() (models.Coords, error) {
	raw, _, err := c.store.Get(Key)
	if err != nil {
		return models.Coords{}, err
	}
	if raw == Denied {
		return models.Coords{}, ErrDenied
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return models.Coords{}, &apperr.DecodeError{Type: "location", Cause: err}
	}
	if err := e.Coords.Validate(); err != nil {
		return models.Coords{}, &apperr.DecodeError{Type: "location", Cause: err}
	}
	if c.now().Sub(e.Time) >= c.maxAge {
		return models.Coords{}, ErrStale
	}
	return e.Coords, nil
}

// Save caches coords with the current time.
func (c *Cache) Save(coords models.Coords) error {
	if err := coords.Validate(); err != nil {
		return &apperr.ValidationError{Message: err.Error()}
	}
	data, err := json.Marshal(entry{Coords: coords, Time: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("geo: encode: %w", err)
	}
	return c.store.Set(Key, string(data))
}

// Deny records that the user refused location access.
func (c *Cache) Deny() error {
	return c.store.Set(Key, Denied)
}

// Resolve returns the cached position when fresh and otherwise asks loc.
// A refusal from loc (ErrDenied) is remembered. A stored refusal is final
// until Forget is called.
func (c *Cache) Resolve(ctx context.Context, loc Locator) (models.Coords, error) {
	coords, err := c.Lookup()
	switch {
	case err == nil:
		return coords, nil
	case errors.Is(err, ErrDenied):
		return models.Coords{}, err
	}

	if loc == nil {
		return models.Coords{}, apperr.ErrNotFound
	}
	coords, err = loc.Locate(ctx)
	if errors.Is(err, ErrDenied) {
		if derr := c.Deny(); derr != nil {
			return models.Coords{}, derr
		}
		return models.Coords{}, err
	}
	if err != nil {
		return models.Coords{}, err
	}
	if err := c.Save(coords); err != nil {
		return models.Coords{}, err
	}
	return coords, nil
}

// Forget clears any cached position or refusal.
func (c *Cache) Forget() error {
	return c.store.Delete(Key)
}
