package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashSessionToken derives the storage key for a token so a leaked store dump
// does not yield usable bearer tokens.
func hashSessionToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
