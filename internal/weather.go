package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/geo"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/query"
)

// WeatherOptions controls Weather.
type WeatherOptions struct {
	// Unit is F or C; empty uses the configured unit.
	Unit string
	// At, when set, is cached as the current position before the lookup.
	At *models.Coords
	// Forget clears the cached position or refusal first.
	Forget bool
}

// Weather prints current conditions at the cached or configured position.
// The weather request is only enabled once a position is known.
func (a *App) Weather(ctx context.Context, opts WeatherOptions) error {
	unit := strings.ToUpper(opts.Unit)
	if unit == "" {
		unit = a.cfg.Location.Unit
	}
	if err := validation.Validate(unit, validation.In(models.UnitFahrenheit, models.UnitCelsius)); err != nil {
		return &apperr.ValidationError{Message: fmt.Sprintf("unit %q: must be F or C", opts.Unit)}
	}

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	cache := geo.NewCache(db)

	if opts.Forget {
		if err := cache.Forget(); err != nil {
			return fmt.Errorf("weather: %w", err)
		}
	}
	if opts.At != nil {
		if err := cache.Save(*opts.At); err != nil {
			return fmt.Errorf("weather: %w", err)
		}
	}

	coords, locErr := cache.Resolve(ctx, a.locator)
	switch {
	case errors.Is(locErr, geo.ErrDenied):
		a.printf("%s\n", errorStyle.Render("Location access was denied. Run with --forget to ask again."))
		return errFailed
	case errors.Is(locErr, apperr.ErrNotFound):
		a.printf("%s\n", dimStyle.Render("Location unknown. Pass --lat and --lon or set location in the config."))
		return errFailed
	case locErr != nil:
		return fmt.Errorf("weather: location: %w", locErr)
	}

	q := query.New(query.JSON[models.Weather](a.client), a.tokens, query.WithLogger(a.logger))
	defer q.Close()
	q.Update(ctx, backend.WeatherPath(coords, unit), locErr == nil)
	st, err := q.Await(ctx)
	if err != nil {
		return err
	}
	if st.Status == query.Error {
		return fmt.Errorf("weather: %w", st.Err)
	}

	w := st.Data
	a.header(fmt.Sprintf("Weather at %.2f, %.2f", coords.Latitude, coords.Longitude))
	a.printf("%.1f°%s, %s\n", w.Temperature2m, unit, w.Condition())
	a.printf("feels like %.1f°%s  humidity %.0f%%  wind %.1f  rain chance %.0f%%\n",
		w.ApparentTemperature, unit, w.RelativeHumidity2m, w.WindSpeed10m, w.PrecipitationProbability)
	return nil
}
