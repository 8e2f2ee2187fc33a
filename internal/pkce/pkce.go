// Package pkce implements the Proof Key for Code Exchange pieces of the
// authorization flow (RFC 7636, S256 method only).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const verifierBytes = 32

// GenerateVerifier returns a fresh high-entropy code verifier:
// 32 random bytes, base64url encoded without padding (43 characters).
func GenerateVerifier() (string, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashVerifier returns the hex sha256 of a verifier, suitable for audit
// records where the verifier itself must not be stored.
func HashVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return hex.EncodeToString(sum[:])
}
