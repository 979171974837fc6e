package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenPrefix marks API tokens so they are recognizable in logs and headers.
const TokenPrefix = "hb_"

// GenerateToken returns TokenPrefix followed by 64 hex characters.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(buf), nil
}
