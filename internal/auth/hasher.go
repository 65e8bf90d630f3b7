package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm constants.
const (
	HashAlgSHA256 = "sha256"
	HashAlgSHA512 = "sha512"
	HashAlgBcrypt = "bcrypt"
)

// Hasher produces the stored digest for a raw credential. Raw credentials
// are never persisted or compared directly.
type Hasher interface {
	// Hash returns the digest of the raw credential.
	Hash(raw string) (string, error)

	// Verify reports whether the raw credential matches the stored digest.
	// For deterministic digests this is a digest equality check performed
	// by the store lookup; it exists so salted algorithms can participate.
	Verify(raw, digest string) bool

	// Deterministic reports whether equal inputs produce equal digests,
	// allowing lookup-by-hash in the credential store.
	Deterministic() bool
}

// SHA256Hasher hashes credentials with SHA-256. This is the default and
// what existing stored key digests use.
type SHA256Hasher struct{}

// Hash implements Hasher.
func (SHA256Hasher) Hash(raw string) (string, error) {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}

// Verify implements Hasher.
func (h SHA256Hasher) Verify(raw, digest string) bool {
	computed, _ := h.Hash(raw)
	return computed == digest
}

// Deterministic implements Hasher.
func (SHA256Hasher) Deterministic() bool { return true }

// SHA512Hasher hashes credentials with SHA-512.
type SHA512Hasher struct{}

// Hash implements Hasher.
func (SHA512Hasher) Hash(raw string) (string, error) {
	sum := sha512.Sum512([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}

// Verify implements Hasher.
func (h SHA512Hasher) Verify(raw, digest string) bool {
	computed, _ := h.Hash(raw)
	return computed == digest
}

// Deterministic implements Hasher.
func (SHA512Hasher) Deterministic() bool { return true }

// BcryptHasher hashes credentials with bcrypt. Salted, so it cannot be
// used for lookup-by-hash; it is accepted at issuance for deployments
// that keep a separate key-ID index.
type BcryptHasher struct {
	Cost int
}

// Hash implements Hasher.
func (h BcryptHasher) Hash(raw string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify implements Hasher.
func (BcryptHasher) Verify(raw, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(raw)) == nil
}

// Deterministic implements Hasher.
func (BcryptHasher) Deterministic() bool { return false }

// NewHasher returns the hasher for the named algorithm.
func NewHasher(algorithm string) (Hasher, error) {
	switch algorithm {
	case "", HashAlgSHA256:
		return SHA256Hasher{}, nil
	case HashAlgSHA512:
		return SHA512Hasher{}, nil
	case HashAlgBcrypt:
		return BcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}
