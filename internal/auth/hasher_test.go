// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/pkg/errutil"
)

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces PHC formatted hash", func(t *testing.T) {
		hash, err := hasher.Hash("hunter2")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
		assert.Len(t, strings.Split(hash, "$"), 6)
		assert.NotContains(t, hash, "hunter2")
	})

	t.Run("same secret hashes differently each time", func(t *testing.T) {
		hash1, err := hasher.Hash("same")
		require.NoError(t, err)
		hash2, err := hasher.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	secrets := []string{"plain", "with:colon:s", "ünïcødé", strings.Repeat("x", 512)}
	for _, secret := range secrets {
		t.Run("round trip "+secret[:min(len(secret), 12)], func(t *testing.T) {
			hash, err := hasher.Hash(secret)
			require.NoError(t, err)

			ok, err := hasher.Verify(secret, hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = hasher.Verify(secret+"!", hash)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	t.Run("all-zero placeholder hash verifies as mismatch", func(t *testing.T) {
		ok, err := hasher.Verify("anything",
			"$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	malformed := []struct {
		name    string
		hash    string
		message string
	}{
		{name: "not a hash", hash: "not-a-valid-hash", message: "invalid hash format"},
		{name: "empty", hash: ""},
		{name: "wrong algorithm", hash: "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", message: "unsupported hash algorithm"},
		{name: "bad version", hash: "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "other version", hash: "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA", message: "unsupported argon2 version"},
		{name: "bad parameters", hash: "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{name: "bad salt", hash: "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA"},
		{name: "bad key", hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!"},
		{name: "threads overflow", hash: "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA", message: "threads value"},
		{name: "zero threads", hash: "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA", message: "threads value"},
		{name: "zero time", hash: "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA", message: "time value"},
	}
	for _, tt := range malformed {
		t.Run("malformed "+tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("secret", tt.hash)
			require.Error(t, err)
			assert.False(t, ok)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}
