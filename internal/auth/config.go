package auth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Modes.
const (
	ModeDisabled = "disabled"
	ModeStatic   = "static"
	ModeJWT      = "jwt"
)

// Config selects and configures the token source.
//
// Mode controls where bearer tokens come from:
//   - "disabled" (default): no token; every request is skipped as signed out.
//   - "static": Token is sent as is.
//   - "jwt": a fresh HS256 token for Subject is signed with Secret per request.
type Config struct {
	Mode    string        `yaml:"mode"`
	Token   string        `yaml:"token"`
	Secret  string        `yaml:"secret"`
	Subject string        `yaml:"subject"`
	TTL     time.Duration `yaml:"ttl"`
}

// Validate validates the auth configuration.
func (c *Config) Validate() error {
	if c.Mode == "" {
		c.Mode = ModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeDisabled, ModeStatic, ModeJWT)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	switch c.Mode {
	case ModeStatic:
		if c.Token == "" {
			return fmt.Errorf("auth: mode is %q but token is empty", ModeStatic)
		}
	case ModeJWT:
		return validation.ValidateStruct(c,
			validation.Field(&c.Secret, validation.Required, validation.Length(MinSecretLen, 0)),
			validation.Field(&c.Subject, validation.Required),
		)
	}
	return nil
}

// Enabled returns true when requests carry a token.
func (c *Config) Enabled() bool {
	return c.Mode == ModeStatic || c.Mode == ModeJWT
}

// FromConfig builds the TokenSource described by c.
func FromConfig(c Config) (TokenSource, error) {
	switch c.Mode {
	case "", ModeDisabled:
		return Disabled(), nil
	case ModeStatic:
		return Static(c.Token), nil
	case ModeJWT:
		return NewSigner([]byte(c.Secret), c.Subject, c.TTL)
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", c.Mode)
	}
}
