// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // G505: verify-only support for legacy PBKDF2-SHA1 records
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"hash"
	"io"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm names a password key-derivation function.
type Algorithm string

// Supported algorithms for new hashes.
const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmPBKDF2   Algorithm = "pbkdf2"
)

// Leading format byte of an encoded hash.
const (
	formatPBKDF2   byte = 0x01
	formatArgon2id byte = 0x02
)

// PRF identifiers stored in PBKDF2 hashes.
const (
	prfHMACSHA1   uint32 = 0
	prfHMACSHA256 uint32 = 1
	prfHMACSHA512 uint32 = 2
)

// Upper bounds on cost parameters read back from stored hashes, so a corrupt
// record cannot pin a CPU or exhaust memory.
const (
	maxArgon2Time      = 64
	maxArgon2MemoryKiB = 4 * 1024 * 1024
	maxPBKDF2Iter      = 10_000_000
	maxSaltLength      = 1024
	maxKeyLength       = 1024
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(ErrValidation, "password cannot be empty")

// VerifyResult is the outcome of a password verification.
type VerifyResult int

// Verification outcomes.
const (
	VerifyFailed VerifyResult = iota
	VerifySuccess
	VerifyNeedsRehash
)

// String implements fmt.Stringer.
func (r VerifyResult) String() string {
	switch r {
	case VerifySuccess:
		return "success"
	case VerifyNeedsRehash:
		return "needs_rehash"
	default:
		return "failed"
	}
}

// OK reports whether the password matched.
func (r VerifyResult) OK() bool {
	return r == VerifySuccess || r == VerifyNeedsRehash
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash derives a salted hash of the password in a self-describing format.
	Hash(password string) ([]byte, error)

	// Verify checks password against an encoded hash.
	// Returns an error only when the hash cannot be decoded.
	Verify(encoded []byte, password string) (VerifyResult, error)
}

// HashPolicy is the cost policy applied to new hashes. Stored hashes with a
// different algorithm or weaker parameters verify as VerifyNeedsRehash.
type HashPolicy struct {
	Algorithm        Algorithm
	Argon2Time       uint32
	Argon2MemoryKiB  uint32
	Argon2Threads    uint8
	PBKDF2Iterations uint32
	SaltLength       uint32
	KeyLength        uint32
}

// DefaultHashPolicy returns OWASP-recommended argon2id parameters.
func DefaultHashPolicy() HashPolicy {
	return HashPolicy{
		Algorithm:        AlgorithmArgon2id,
		Argon2Time:       1,
		Argon2MemoryKiB:  64 * 1024,
		Argon2Threads:    4,
		PBKDF2Iterations: 210_000,
		SaltLength:       16,
		KeyLength:        32,
	}
}

// Validate checks that the policy can produce hashes.
func (p HashPolicy) Validate() error {
	switch p.Algorithm {
	case AlgorithmArgon2id:
		if p.Argon2Time < 1 || p.Argon2Time > maxArgon2Time {
			return oops.Code("AUTH_INVALID_POLICY").With("argon2_time", p.Argon2Time).Errorf("argon2 time out of range")
		}
		if p.Argon2Threads < 1 {
			return oops.Code("AUTH_INVALID_POLICY").Errorf("argon2 threads must be at least 1")
		}
		if p.Argon2MemoryKiB < 8*uint32(p.Argon2Threads) || p.Argon2MemoryKiB > maxArgon2MemoryKiB {
			return oops.Code("AUTH_INVALID_POLICY").With("argon2_memory_kib", p.Argon2MemoryKiB).Errorf("argon2 memory out of range")
		}
	case AlgorithmPBKDF2:
		if p.PBKDF2Iterations < 1 || p.PBKDF2Iterations > maxPBKDF2Iter {
			return oops.Code("AUTH_INVALID_POLICY").With("pbkdf2_iterations", p.PBKDF2Iterations).Errorf("pbkdf2 iterations out of range")
		}
	default:
		return oops.Code("AUTH_INVALID_POLICY").With("algorithm", p.Algorithm).Errorf("unsupported hash algorithm: %s", p.Algorithm)
	}
	if p.SaltLength < 8 || p.SaltLength > maxSaltLength {
		return oops.Code("AUTH_INVALID_POLICY").With("salt_length", p.SaltLength).Errorf("salt length out of range")
	}
	if p.KeyLength < 16 || p.KeyLength > maxKeyLength {
		return oops.Code("AUTH_INVALID_POLICY").With("key_length", p.KeyLength).Errorf("key length out of range")
	}
	return nil
}

// Hasher implements PasswordHasher. New hashes follow its policy; Verify
// accepts argon2id, PBKDF2 and legacy bcrypt hashes.
type Hasher struct {
	policy HashPolicy
	random io.Reader
}

// NewHasher creates a Hasher for the given policy.
func NewHasher(policy HashPolicy) (*Hasher, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{policy: policy, random: rand.Reader}, nil
}

// NewArgon2idHasher creates a Hasher with DefaultHashPolicy.
func NewArgon2idHasher() *Hasher {
	return &Hasher{policy: DefaultHashPolicy(), random: rand.Reader}
}

// Policy returns the policy used for new hashes.
func (h *Hasher) Policy() HashPolicy {
	return h.policy
}

// Hash derives a new hash of password under the current policy.
func (h *Hasher) Hash(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	salt := make([]byte, h.policy.SaltLength)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return nil, oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	p := h.policy
	if p.Algorithm == AlgorithmPBKDF2 {
		key := pbkdf2.Key([]byte(password), salt, int(p.PBKDF2Iterations), int(p.KeyLength), sha512.New)
		return encodePBKDF2(prfHMACSHA512, p.PBKDF2Iterations, salt, key), nil
	}

	key := argon2.IDKey([]byte(password), salt, p.Argon2Time, p.Argon2MemoryKiB, p.Argon2Threads, p.KeyLength)
	return encodeArgon2id(p.Argon2Time, p.Argon2MemoryKiB, p.Argon2Threads, salt, key), nil
}

// Verify checks password against encoded.
func (h *Hasher) Verify(encoded []byte, password string) (VerifyResult, error) {
	if len(encoded) == 0 {
		return VerifyFailed, invalidHash("empty hash")
	}

	switch {
	case encoded[0] == formatArgon2id:
		return h.verifyArgon2id(encoded, password)
	case encoded[0] == formatPBKDF2:
		return h.verifyPBKDF2(encoded, password)
	case isBcrypt(encoded):
		return verifyBcrypt(encoded, password)
	}
	return VerifyFailed, invalidHash("unsupported hash format")
}

func (h *Hasher) verifyArgon2id(encoded []byte, password string) (VerifyResult, error) {
	params, err := decodeArgon2id(encoded)
	if err != nil {
		return VerifyFailed, err
	}

	computed := argon2.IDKey([]byte(password), params.salt, params.time, params.memory, params.threads, uint32(len(params.key)))
	if subtle.ConstantTimeCompare(computed, params.key) != 1 {
		return VerifyFailed, nil
	}

	p := h.policy
	if p.Algorithm != AlgorithmArgon2id ||
		params.time < p.Argon2Time ||
		params.memory < p.Argon2MemoryKiB ||
		uint32(len(params.key)) < p.KeyLength ||
		uint32(len(params.salt)) < p.SaltLength {
		return VerifyNeedsRehash, nil
	}
	return VerifySuccess, nil
}

func (h *Hasher) verifyPBKDF2(encoded []byte, password string) (VerifyResult, error) {
	params, err := decodePBKDF2(encoded)
	if err != nil {
		return VerifyFailed, err
	}

	computed := pbkdf2.Key([]byte(password), params.salt, int(params.iterations), len(params.key), params.prf)
	if subtle.ConstantTimeCompare(computed, params.key) != 1 {
		return VerifyFailed, nil
	}

	p := h.policy
	if p.Algorithm != AlgorithmPBKDF2 ||
		params.prfID != prfHMACSHA512 ||
		params.iterations < p.PBKDF2Iterations ||
		uint32(len(params.key)) < p.KeyLength {
		return VerifyNeedsRehash, nil
	}
	return VerifySuccess, nil
}

func verifyBcrypt(encoded []byte, password string) (VerifyResult, error) {
	err := bcrypt.CompareHashAndPassword(encoded, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return VerifyFailed, nil
	}
	if err != nil {
		return VerifyFailed, oops.Code(CodeInvalidHash).With("format", "bcrypt").Wrap(err)
	}
	// bcrypt is accepted for existing records only.
	return VerifyNeedsRehash, nil
}

func isBcrypt(encoded []byte) bool {
	return bytes.HasPrefix(encoded, []byte("$2a$")) ||
		bytes.HasPrefix(encoded, []byte("$2b$")) ||
		bytes.HasPrefix(encoded, []byte("$2y$"))
}

func invalidHash(reason string) error {
	return oops.Code(CodeInvalidHash).Errorf("invalid password hash: %s", reason)
}

// encodeArgon2id lays out
// [0x02][time u32][memory u32][threads u8][salt len u32][salt][key].
func encodeArgon2id(time, memory uint32, threads uint8, salt, key []byte) []byte {
	buf := make([]byte, 0, 1+4+4+1+4+len(salt)+len(key))
	buf = append(buf, formatArgon2id)
	buf = binary.BigEndian.AppendUint32(buf, time)
	buf = binary.BigEndian.AppendUint32(buf, memory)
	buf = append(buf, threads)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(salt)))
	buf = append(buf, salt...)
	return append(buf, key...)
}

type argon2idParams struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

func decodeArgon2id(encoded []byte) (*argon2idParams, error) {
	const header = 1 + 4 + 4 + 1 + 4
	if len(encoded) < header {
		return nil, invalidHash("argon2id header truncated")
	}

	p := &argon2idParams{
		time:    binary.BigEndian.Uint32(encoded[1:5]),
		memory:  binary.BigEndian.Uint32(encoded[5:9]),
		threads: encoded[9],
	}
	saltLen := binary.BigEndian.Uint32(encoded[10:14])

	if p.time < 1 || p.time > maxArgon2Time {
		return nil, oops.Code(CodeInvalidHash).With("time", p.time).Errorf("invalid password hash: argon2id time out of range")
	}
	if p.threads < 1 {
		return nil, invalidHash("argon2id threads must be at least 1")
	}
	if p.memory > maxArgon2MemoryKiB {
		return nil, oops.Code(CodeInvalidHash).With("memory_kib", p.memory).Errorf("invalid password hash: argon2id memory out of range")
	}
	if saltLen == 0 || saltLen > maxSaltLength || uint64(saltLen) >= uint64(len(encoded)-header) {
		return nil, invalidHash("argon2id salt length out of range")
	}

	p.salt = encoded[header : header+int(saltLen)]
	p.key = encoded[header+int(saltLen):]
	if len(p.key) > maxKeyLength {
		return nil, invalidHash("argon2id key too long")
	}
	return p, nil
}

// encodePBKDF2 lays out [0x01][prf u32][iterations u32][salt len u32][salt][key].
func encodePBKDF2(prf, iterations uint32, salt, key []byte) []byte {
	buf := make([]byte, 0, 1+4+4+4+len(salt)+len(key))
	buf = append(buf, formatPBKDF2)
	buf = binary.BigEndian.AppendUint32(buf, prf)
	buf = binary.BigEndian.AppendUint32(buf, iterations)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(salt)))
	buf = append(buf, salt...)
	return append(buf, key...)
}

type pbkdf2Params struct {
	prfID      uint32
	prf        func() hash.Hash
	iterations uint32
	salt       []byte
	key        []byte
}

func decodePBKDF2(encoded []byte) (*pbkdf2Params, error) {
	const header = 1 + 4 + 4 + 4
	if len(encoded) < header {
		return nil, invalidHash("pbkdf2 header truncated")
	}

	p := &pbkdf2Params{
		prfID:      binary.BigEndian.Uint32(encoded[1:5]),
		iterations: binary.BigEndian.Uint32(encoded[5:9]),
	}
	saltLen := binary.BigEndian.Uint32(encoded[9:13])

	switch p.prfID {
	case prfHMACSHA1:
		p.prf = sha1.New
	case prfHMACSHA256:
		p.prf = sha256.New
	case prfHMACSHA512:
		p.prf = sha512.New
	default:
		return nil, oops.Code(CodeInvalidHash).With("prf", p.prfID).Errorf("invalid password hash: unknown pbkdf2 prf")
	}
	if p.iterations < 1 || p.iterations > maxPBKDF2Iter {
		return nil, oops.Code(CodeInvalidHash).With("iterations", p.iterations).Errorf("invalid password hash: pbkdf2 iterations out of range")
	}
	if saltLen == 0 || saltLen > maxSaltLength || uint64(saltLen) >= uint64(len(encoded)-header) {
		return nil, invalidHash("pbkdf2 salt length out of range")
	}

	p.salt = encoded[header : header+int(saltLen)]
	p.key = encoded[header+int(saltLen):]
	if len(p.key) > maxKeyLength {
		return nil, invalidHash("pbkdf2 key too long")
	}
	return p, nil
}
