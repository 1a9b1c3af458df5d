package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key returns the content address of s: the hex encoded SHA-256 digest.
func Key(s string) string {
	sum := sha256.Sum256([]byte(s))

	return hex.EncodeToString(sum[:])
}
