// Package auth provides password hashing and bearer token primitives.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Supported password hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// maxBcryptPasswordLength is the number of bytes bcrypt reads from its input.
const maxBcryptPasswordLength = 72

var (
	// ErrPasswordTooLong indicates the password exceeds the bcrypt input limit.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrUnsupportedAlgorithm indicates an unknown hashing algorithm name.
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
)

// PasswordHasher hashes and verifies passwords.
// Hashes are self-describing so verification needs no side channel.
type PasswordHasher interface {
	// Hash produces an encoded hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches encodedHash.
	// A malformed hash never matches.
	Verify(password, encodedHash string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. Out-of-range costs are clamped.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = DefaultBcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash creates a bcrypt hash in modular crypt format ($2a$<cost>$...).
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > maxBcryptPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("generate bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// Verify compares in constant time. Any bcrypt error is a mismatch.
// Inputs bcrypt would truncate never match.
func (h *BcryptHasher) Verify(password, encodedHash string) bool {
	if len(password) > maxBcryptPasswordLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hasher hashes with one configured algorithm and verifies any supported format.
type Hasher struct {
	primary PasswordHasher
	bcrypt  *BcryptHasher
	argon2  *Argon2idHasher
}

// NewHasher creates a Hasher that produces hashes with the named algorithm.
func NewHasher(algorithm string, bcryptCost int) (*Hasher, error) {
	h := &Hasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2idHasher(),
	}

	switch algorithm {
	case "", AlgorithmBcrypt:
		h.primary = h.bcrypt
	case AlgorithmArgon2id:
		h.primary = h.argon2
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	return h, nil
}

// Hash hashes with the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// BcryptCost returns the work factor used for new bcrypt hashes.
func (h *Hasher) BcryptCost() int {
	return h.bcrypt.Cost()
}

// Verify dispatches on the hash prefix.
func (h *Hasher) Verify(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return h.argon2.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$2"):
		return h.bcrypt.Verify(password, encodedHash)
	default:
		return false
	}
}
