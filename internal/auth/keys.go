package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashSecret returns a SHA-256 hash of the agent API secret.
// Only the hash is ever stored or compared server-side.
func HashSecret(secret string) string {
	secret = strings.TrimSpace(secret)

	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// SecretMatches compares a presented secret against a stored hash in
// constant time.
func SecretMatches(secret, storedHash string) bool {
	presented := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}
