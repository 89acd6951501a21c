package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateDownloadToken mints an opaque bearer token for a purchase:
// 32 bytes of crypto/rand, hex encoded (64 chars, 256 bits of entropy).
// Tokens are generated exactly once, at purchase creation.
func GenerateDownloadToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate download token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TruncateToken returns a loggable prefix of a download token. Tokens are
// bearer credentials and must never appear in full in logs.
func TruncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
