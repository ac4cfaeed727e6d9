package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// sessionTokenLength is the length of generated bearer tokens. Long enough
// that the token itself is the only secret a client holds.
const sessionTokenLength = 255

// tokenAlphabet is the character set for session tokens. Alphanumeric only,
// so tokens survive headers, URLs and logs-by-accident without escaping.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionToken generates a cryptographically random opaque bearer token.
func NewSessionToken() (string, error) {
	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))

	buf := make([]byte, sessionTokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generating session token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
