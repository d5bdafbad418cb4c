package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultTokenBytes is the entropy of a token when no length is given.
const DefaultTokenBytes = 32

// TokenGenerator issues unpredictable tokens.
type TokenGenerator interface {
	NewToken(byteLength int) (string, error)
}

// RandomTokens draws tokens from crypto/rand and hex encodes them.
type RandomTokens struct{}

func (RandomTokens) NewToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
