package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sitebid/authcore/internal/autherrors"
)

// A refresh token travels as "selector.verifier". The selector is a
// public lookup key; the verifier is the secret half, of which only a
// one-way hash is ever stored.
const (
	SelectorBytes = 16
	VerifierBytes = 32

	selectorHexLen = SelectorBytes * 2
	verifierHexLen = VerifierBytes * 2

	separator = "."
)

// Pair holds a freshly generated or parsed selector/verifier pair.
type Pair struct {
	Selector string // lowercase hex, selectorHexLen chars
	Verifier string // lowercase hex, verifierHexLen chars
	Token    string // canonical wire form "selector.verifier"
}

// GeneratePair draws a new selector and verifier from the system's
// cryptographically secure random source.
func GeneratePair() (*Pair, error) {
	selectorBytes := make([]byte, SelectorBytes)
	if _, err := rand.Read(selectorBytes); err != nil {
		return nil, fmt.Errorf("failed to generate selector: %w", err)
	}

	verifierBytes := make([]byte, VerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate verifier: %w", err)
	}

	selector := hex.EncodeToString(selectorBytes)
	verifier := hex.EncodeToString(verifierBytes)

	return &Pair{
		Selector: selector,
		Verifier: verifier,
		Token:    selector + separator + verifier,
	}, nil
}

// ParseToken splits and validates a wire-form refresh token. Length,
// separator, and alphabet are all checked here so malformed input is
// rejected before any store lookup. Hex case is normalized to lowercase.
func ParseToken(rawToken string) (*Pair, error) {
	parts := strings.Split(rawToken, separator)
	if len(parts) != 2 {
		return nil, autherrors.ErrTokenMalformed
	}

	selector := strings.ToLower(parts[0])
	verifier := strings.ToLower(parts[1])

	if len(selector) != selectorHexLen || len(verifier) != verifierHexLen {
		return nil, autherrors.ErrTokenMalformed
	}
	if !isLowerHex(selector) || !isLowerHex(verifier) {
		return nil, autherrors.ErrTokenMalformed
	}

	return &Pair{
		Selector: selector,
		Verifier: verifier,
		Token:    selector + separator + verifier,
	}, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
