package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// tokenRandomBytes is the entropy per token: 32 bytes = 256 bits, rendered
// as 64 hex characters.
const tokenRandomBytes = 32

// Token prefixes identify the binding at a glance in logs-adjacent tooling
// (never in logs themselves) and let validation reject mismatched kinds
// before touching the database.
const (
	tokenPrefixUser   = "usr_"
	tokenPrefixDevice = "dev_"
)

// GenerateSessionToken returns a new random session token (64 hex chars,
// no prefix).
func GenerateSessionToken() (string, error) {
	raw, err := randomHex(tokenRandomBytes)
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return raw, nil
}

// GenerateAPIToken returns a new random API token carrying the kind prefix:
// usr_<64 hex> for user tokens, dev_<64 hex> for device tokens.
func GenerateAPIToken(kind TokenKind) (string, error) {
	raw, err := randomHex(tokenRandomBytes)
	if err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}

	switch kind {
	case TokenKindUser:
		return tokenPrefixUser + raw, nil
	case TokenKindDevice:
		return tokenPrefixDevice + raw, nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

// ParseTokenKind extracts the binding from a token's prefix.
// Returns ErrTokenInvalid for unprefixed or malformed tokens.
func ParseTokenKind(token string) (TokenKind, error) {
	switch {
	case strings.HasPrefix(token, tokenPrefixUser):
		return TokenKindUser, nil
	case strings.HasPrefix(token, tokenPrefixDevice):
		return TokenKindDevice, nil
	default:
		return "", ErrTokenInvalid
	}
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
