package auth

import (
	"strings"
	"testing"
)

func TestNewSessionToken(t *testing.T) {
	token, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}

	if len(token) != sessionTokenLength {
		t.Errorf("token length = %d, want %d", len(token), sessionTokenLength)
	}

	for _, r := range token {
		if !strings.ContainsRune(tokenAlphabet, r) {
			t.Errorf("token contains character %q outside the alphabet", r)
			break
		}
	}
}

func TestNewSessionTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := NewSessionToken()
		if err != nil {
			t.Fatalf("NewSessionToken() error = %v", err)
		}
		if seen[token] {
			t.Fatal("NewSessionToken() produced a duplicate")
		}
		seen[token] = true
	}
}
