package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Temperature units accepted by the weather endpoint.
const (
	UnitFahrenheit = "F"
	UnitCelsius    = "C"
)

// Weather is the current conditions for a rounded coordinate pair.
type Weather struct {
	ID                       string    `json:"id"`
	Location                 string    `json:"location"`
	Temperature2m            float64   `json:"temperature_2m"`
	WindSpeed10m             float64   `json:"wind_speed_10m"`
	WeatherCode              int       `json:"weather_code"`
	RelativeHumidity2m       float64   `json:"relative_humidity_2m"`
	ApparentTemperature      float64   `json:"apparent_temperature"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (w Weather) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Location, validation.Required),
		validation.Field(&w.WeatherCode, validation.Min(0), validation.Max(99)),
	)
}

// Condition maps a WMO weather code to a short label.
func (w Weather) Condition() string {
	switch c := w.WeatherCode; {
	case c <= 1:
		return "clear"
	case c == 2:
		return "partly cloudy"
	case c == 3:
		return "overcast"
	case c < 45:
		return "haze"
	case c < 50:
		return "fog"
	case c < 70:
		return "rain"
	case c < 80:
		return "snow"
	default:
		return "showers"
	}
}

// Coords is a geographic position.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coords) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&c.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)
}
