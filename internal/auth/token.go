// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/samber/oops"
)

// TokenBytes is the number of random bytes in a generated token.
// 32 bytes = 64 hex chars.
const TokenBytes = 32

// TokenGenerator produces opaque random tokens for sessions and resets.
type TokenGenerator interface {
	NewToken() (string, error)
}

// RandomTokenGenerator draws tokens from crypto/rand.
type RandomTokenGenerator struct{}

// NewRandomTokenGenerator creates a new RandomTokenGenerator.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{}
}

// NewToken returns a hex-encoded token of TokenBytes random bytes.
func (g *RandomTokenGenerator) NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

var _ TokenGenerator = (*RandomTokenGenerator)(nil)
