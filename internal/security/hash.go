// Package security hashes and verifies secrets: flags, passwords and
// finalist tokens.
package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a secret into a salted digest and checks candidates against
// one. Verify reports a mismatch as false with a nil error; errors are kept
// for malformed digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(secret string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

func (Bcrypt) Verify(secret, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bcrypt: %w", err)
	}
	return true, nil
}

type Argon2id struct {
	Params *argon2id.Params
}

func (a Argon2id) Hash(secret string) (string, error) {
	params := a.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	out, err := argon2id.CreateHash(secret, params)
	if err != nil {
		return "", fmt.Errorf("argon2id: %w", err)
	}
	return out, nil
}

func (Argon2id) Verify(secret, digest string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(secret, digest)
	if err != nil {
		return false, fmt.Errorf("argon2id: %w", err)
	}
	return ok, nil
}

// Multi hashes with Primary and verifies with whichever algorithm produced
// the digest, so switching HASH_ALGO keeps old digests valid.
type Multi struct {
	Primary Hasher
	bcrypt  Bcrypt
	argon   Argon2id
}

// New returns a Multi hashing with algo ("bcrypt" or "argon2id").
func New(algo string, bcryptCost int) (*Multi, error) {
	m := &Multi{bcrypt: Bcrypt{Cost: bcryptCost}}
	switch algo {
	case "", "bcrypt":
		m.Primary = m.bcrypt
	case "argon2id":
		m.Primary = m.argon
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algo)
	}
	return m, nil
}

func (m *Multi) Hash(secret string) (string, error) {
	return m.Primary.Hash(secret)
}

func (m *Multi) Verify(secret, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return m.argon.Verify(secret, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return m.bcrypt.Verify(secret, digest)
	default:
		return false, errors.New("unrecognised digest format")
	}
}
