package token

import (
	"errors"
	"strings"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s := NewSigner("test-secret")
	signed := s.Sign("session_0123456789abcdef0123456789abcdef")

	got, err := s.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != "session_0123456789abcdef0123456789abcdef" {
		t.Fatalf("value=%q", got)
	}

	dotted := s.Sign("a.b.c")
	if got, err := s.Verify(dotted); err != nil || got != "a.b.c" {
		t.Fatalf("dotted value=%q err=%v", got, err)
	}
}

func TestVerifyRejects(t *testing.T) {
	s := NewSigner("test-secret")
	signed := s.Sign("session_abc")

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no signature", "session_abc"},
		{"trailing dot", "session_abc."},
		{"leading dot", ".sig"},
		{"tampered value", strings.Replace(signed, "abc", "abd", 1)},
		{"bad base64", "session_abc.!!!"},
		{"other key", NewSigner("other-secret").Sign("session_abc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.input); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Verify(%q) err=%v want ErrInvalid", tt.input, err)
			}
		})
	}
}

func TestRandomKeySigners(t *testing.T) {
	a, b := NewSigner(""), NewSigner("")
	if _, err := b.Verify(a.Sign("x")); err == nil {
		t.Fatal("two random-key signers accepted each other's values")
	}
	if len(GenerateSecretKey()) != 32 {
		t.Fatal("key length")
	}
}
