package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/editor"
	"github.com/starford/scribe/internal/models"
)

// Environment variables consulted when api.url is empty, in order.
var apiURLEnv = []string{"VITE_API_URL", "API_URL"}

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	API      APIConfig         `yaml:"api"`
	Auth     auth.Config       `yaml:"auth"`
	Editor   EditorConfig      `yaml:"editor"`
	Preview  PreviewConfig     `yaml:"preview"`
	Store    StoreConfig       `yaml:"store"`
	Location LocationConfig    `yaml:"location"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.API.resolve(os.Getenv); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Editor.Validate(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	if err := c.Preview.Validate(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Location.Validate(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// APIConfig locates the remote API.
type APIConfig struct {
	URL       string        `yaml:"url"`
	AssetsURL string        `yaml:"assets_url"`
	// Timeout caps each request. Zero leaves cancellation to the caller's context.
	Timeout   time.Duration `yaml:"timeout"`
}

// resolve fills URL from the environment when the file leaves it empty.
// It runs once, at load time.
func (c *APIConfig) resolve(getenv func(string) string) error {
	if c.URL != "" {
		return nil
	}
	for _, key := range apiURLEnv {
		if v := getenv(key); v != "" {
			c.URL = v
			return nil
		}
	}
	return errors.New("api: url is required (set api.url, VITE_API_URL or API_URL)")
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.AssetsURL, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// EditorConfig tunes note editing.
type EditorConfig struct {
	Workspace       string        `yaml:"workspace"`
	Command         string        `yaml:"command"`
	TitleDebounce   time.Duration `yaml:"title_debounce"`
	ContentDebounce time.Duration `yaml:"content_debounce"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workspace, validation.Required),
		validation.Field(&c.TitleDebounce, validation.Min(time.Duration(0))),
		validation.Field(&c.ContentDebounce, validation.Min(time.Duration(0))),
	)
}

// Session returns the editor session settings.
func (c *EditorConfig) Session() editor.Config {
	return editor.Config{TitleDelay: c.TitleDebounce, ContentDelay: c.ContentDebounce}
}

// PreviewConfig holds the preview HTTP server configuration.
type PreviewConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

// Address returns the preview server address.
func (c *PreviewConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig holds the local SQLite store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LocationConfig is the fallback position used when none is cached.
// Both coordinates must be set for it to apply.
type LocationConfig struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Unit      string   `yaml:"unit"`
}

// Validate validates the location configuration.
func (c *LocationConfig) Validate() error {
	if c.Unit == "" {
		c.Unit = models.UnitFahrenheit
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Unit, validation.In(models.UnitFahrenheit, models.UnitCelsius)),
	); err != nil {
		return err
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return errors.New("latitude and longitude must be set together")
	}
	if coords, ok := c.Coords(); ok {
		return coords.Validate()
	}
	return nil
}

// Coords returns the configured position, if any.
func (c *LocationConfig) Coords() (models.Coords, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return models.Coords{}, false
	}
	return models.Coords{Latitude: *c.Latitude, Longitude: *c.Longitude}, true
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Auth: auth.Config{
			Mode: auth.ModeDisabled,
			TTL:  5 * time.Minute,
		},
		Editor: EditorConfig{
			Workspace:       "./workspace",
			TitleDebounce:   editor.DefaultTitleDelay,
			ContentDebounce: editor.DefaultContentDelay,
		},
		Preview: PreviewConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Store: StoreConfig{
			Path: "./scribe.db",
		},
		Location: LocationConfig{
			Unit: models.UnitFahrenheit,
		},
	}
}
