// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

// Hashes written by the previous service use PBKDF2-HMAC-SHA256 with
// 10,000 iterations, a 16 byte salt and a 32 byte subkey.
func TestHasher_VerifiesImportedPBKDF2SHA256(t *testing.T) {
	salt := bytes.Repeat([]byte{0x5a}, 16)
	key := pbkdf2.Key([]byte("Secret123!"), salt, 10_000, 32, sha256.New)
	encoded := encodePBKDF2(prfHMACSHA256, 10_000, salt, key)

	require.Len(t, encoded, 1+4+4+4+16+32)
	assert.Equal(t, []byte{0x01, 0, 0, 0, 1, 0, 0, 0x27, 0x10, 0, 0, 0, 0x10}, encoded[:13])

	h := NewArgon2idHasher()
	result, err := h.Verify(encoded, "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, VerifyNeedsRehash, result)

	result, err = h.Verify(encoded, "secret123!")
	require.NoError(t, err)
	assert.Equal(t, VerifyFailed, result)
}

func TestEncodeDecodeArgon2id(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key := bytes.Repeat([]byte{7}, 32)

	encoded := encodeArgon2id(3, 65536, 4, salt, key)
	params, err := decodeArgon2id(encoded)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), params.time)
	assert.Equal(t, uint32(65536), params.memory)
	assert.Equal(t, uint8(4), params.threads)
	assert.Equal(t, salt, params.salt)
	assert.Equal(t, key, params.key)
}

func TestHasher_SaltReadFailure(t *testing.T) {
	h := &Hasher{policy: DefaultHashPolicy(), random: bytes.NewReader(nil)}
	_, err := h.Hash("password")
	require.Error(t, err)
}
