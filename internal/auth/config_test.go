package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != ModeDisabled || cfg.Enabled() {
		t.Errorf("mode = %q, enabled = %v", cfg.Mode, cfg.Enabled())
	}
}

func TestConfig_StaticModeEmptyToken(t *testing.T) {
	cfg := Config{Mode: ModeStatic}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfig_JWTModeRequiresSecretAndSubject(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{Mode: ModeJWT, Secret: string(testSecret), Subject: "u1"}, true},
		{"short secret", Config{Mode: ModeJWT, Secret: "short", Subject: "u1"}, false},
		{"no subject", Config{Mode: ModeJWT, Secret: string(testSecret)}, false},
		{"negative ttl", Config{Mode: ModeJWT, Secret: string(testSecret), Subject: "u1", TTL: -time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("err = %v, want ok = %v", err, tt.ok)
			}
		})
	}
}

func TestConfig_InvalidMode(t *testing.T) {
	cfg := Config{Mode: "magic"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	src, err := FromConfig(Config{Mode: ModeStatic, Token: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if tok, _ := src.Token(ctx); tok != "abc" {
		t.Errorf("static token = %q", tok)
	}

	src, err = FromConfig(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if tok, _ := src.Token(ctx); tok != "" {
		t.Errorf("disabled token = %q", tok)
	}

	src, err = FromConfig(Config{Mode: ModeJWT, Secret: string(testSecret), Subject: "u1", TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	tok, err := src.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sub, err := Verify(testSecret, tok); err != nil || sub != "u1" {
		t.Errorf("subject = %q, err = %v", sub, err)
	}

	if _, err := FromConfig(Config{Mode: "magic"}); err == nil {
		t.Error("unknown mode should fail")
	}
}
