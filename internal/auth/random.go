package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns a random hex token for single-use email links.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
