package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateSessionToken(t *testing.T) {
	tok, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("session token length = %d, want 64", len(tok))
	}

	other, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}
	if tok == other {
		t.Error("two session tokens are identical")
	}
}

func TestGenerateAPIToken(t *testing.T) {
	tests := []struct {
		kind   TokenKind
		prefix string
	}{
		{TokenKindUser, "usr_"},
		{TokenKindDevice, "dev_"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			tok, err := GenerateAPIToken(tt.kind)
			if err != nil {
				t.Fatalf("GenerateAPIToken(%s) error = %v", tt.kind, err)
			}
			if !strings.HasPrefix(tok, tt.prefix) {
				t.Errorf("token %q missing prefix %q", tok[:8], tt.prefix)
			}
			if len(tok) != len(tt.prefix)+64 {
				t.Errorf("token length = %d, want %d", len(tok), len(tt.prefix)+64)
			}

			kind, err := ParseTokenKind(tok)
			if err != nil {
				t.Fatalf("ParseTokenKind() error = %v", err)
			}
			if kind != tt.kind {
				t.Errorf("ParseTokenKind() = %s, want %s", kind, tt.kind)
			}
		})
	}
}

func TestGenerateAPITokenUnknownKind(t *testing.T) {
	if _, err := GenerateAPIToken(TokenKind("panel")); err == nil {
		t.Error("GenerateAPIToken(unknown) returned nil error")
	}
}

func TestParseTokenKindRejectsUnprefixed(t *testing.T) {
	for _, raw := range []string{"", "abcdef", "tok_0123", "USR_abc"} {
		if _, err := ParseTokenKind(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("ParseTokenKind(%q) error = %v, want ErrTokenInvalid", raw, err)
		}
	}
}
