package dispatch

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SecretVerifier checks the shared build secret presented by the runner.
// The configured value is either the secret itself or its bcrypt hash.
type SecretVerifier struct {
	secret []byte
	hashed bool
}

// NewSecretVerifier creates a verifier for secret
func NewSecretVerifier(secret string) *SecretVerifier {
	return &SecretVerifier{
		secret: []byte(secret),
		hashed: isBcryptHash(secret),
	}
}

func isBcryptHash(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Configured reports whether a secret is set. Without one every check fails.
func (v *SecretVerifier) Configured() bool {
	return v != nil && len(v.secret) > 0
}

// Verify compares presented against the configured secret
func (v *SecretVerifier) Verify(presented string) bool {
	if !v.Configured() || presented == "" {
		return false
	}
	if v.hashed {
		return bcrypt.CompareHashAndPassword(v.secret, []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare(v.secret, []byte(presented)) == 1
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
