package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	if err != nil || tok != "abc" {
		t.Fatalf("Token = %q, %v", tok, err)
	}
}

func TestDisabled(t *testing.T) {
	tok, err := Disabled().Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "" {
		t.Errorf("disabled source returned %q", tok)
	}
}

func TestSigner_RoundTrip(t *testing.T) {
	s, err := NewSigner(testSecret, "user_1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := s.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("not a JWT: %q", tok)
	}
	sub, err := Verify(testSecret, tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "user_1" {
		t.Errorf("subject = %q", sub)
	}
}

func TestSigner_FreshPerCall(t *testing.T) {
	s, _ := NewSigner(testSecret, "user_1", time.Minute)
	calls := 0
	s.now = func() time.Time {
		calls++
		return time.Unix(1_700_000_000+int64(calls), 0)
	}
	a, _ := s.Token(context.Background())
	b, _ := s.Token(context.Background())
	if a == b {
		t.Error("expected a new token per call")
	}
}

func TestSigner_Expired(t *testing.T) {
	s, _ := NewSigner(testSecret, "user_1", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _ := s.Token(context.Background())
	if _, err := Verify(testSecret, tok); err == nil {
		t.Error("expired token should fail verification")
	}
}

func TestNewSigner_ShortSecret(t *testing.T) {
	if _, err := NewSigner([]byte("short"), "u", time.Minute); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	s, _ := NewSigner(testSecret, "user_1", time.Minute)
	tok, _ := s.Token(context.Background())
	if _, err := Verify([]byte("ffffffffffffffffffffffffffffffff"), tok); err == nil {
		t.Error("expected error for wrong secret")
	}
}
