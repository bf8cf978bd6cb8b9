package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// alphabet is the 64-symbol URL-safe charset used for verifiers and states.
// Its length divides 256, so reducing random bytes modulo the length keeps
// the symbol distribution uniform.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

const (
	// VerifierLength is the length of a generated PKCE code verifier.
	VerifierLength = 128
	// StateLength is the length of a generated state parameter.
	StateLength = 32
)

// ErrRandomSource indicates the secure random source could not supply
// entropy. Callers must treat this as fatal rather than falling back to a
// weaker source.
var ErrRandomSource = errors.New("secure random source unavailable")

// PKCEGenerator produces code verifiers, states and S256 code challenges
// for the authorization code flow (RFC 7636).
type PKCEGenerator struct{}

// NewPKCEGenerator creates a new PKCEGenerator.
func NewPKCEGenerator() *PKCEGenerator {
	return &PKCEGenerator{}
}

// GenerateRandomString returns a string of the given length drawn uniformly
// from the URL-safe alphabet using crypto/rand.
func (g *PKCEGenerator) GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomSource, err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// GeneratePair returns a fresh (codeVerifier, state) pair. The two values
// are drawn independently; no two invocations are correlated.
func (g *PKCEGenerator) GeneratePair() (codeVerifier, state string, err error) {
	codeVerifier, err = g.GenerateRandomString(VerifierLength)
	if err != nil {
		return "", "", fmt.Errorf("generating code verifier: %w", err)
	}
	state, err = g.GenerateRandomString(StateLength)
	if err != nil {
		return "", "", fmt.Errorf("generating state: %w", err)
	}
	return codeVerifier, state, nil
}

// GenerateCodeChallenge computes the S256 code challenge for a verifier:
// the base64url encoding, without padding, of its SHA-256 digest.
func (g *PKCEGenerator) GenerateCodeChallenge(verifier string) (string, error) {
	if verifier == "" {
		return "", fmt.Errorf("code verifier cannot be empty")
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// ValidateChallenge reports whether challenge is the S256 challenge of
// verifier.
func (g *PKCEGenerator) ValidateChallenge(challenge, verifier string) bool {
	expected, err := g.GenerateCodeChallenge(verifier)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
