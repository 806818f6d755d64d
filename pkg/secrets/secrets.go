// Package secrets hashes and generates user passwords.
package secrets

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"

	"golang.org/x/crypto/bcrypt"

	dErrors "miriesgo/pkg/domain-errors"
)

// Cost is the bcrypt work factor for new hashes.
const Cost = 12

// GeneratedLength is the length of passwords returned by Generate.
const GeneratedLength = 16

// No 0/O or 1/l/I, so generated passwords survive being read aloud.
const alphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Generate returns a random password for accounts provisioned by the system.
func Generate() (string, error) {
	out := make([]byte, GeneratedLength)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate password")
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

func Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify returns CodeUnauthorized on mismatch.
func Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid password")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
	return nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// Burn spends the same bcrypt work as Verify against a throwaway hash.
// Logins for unknown emails call it so response time does not reveal
// which accounts exist.
func Burn(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("miriesgo-unknown-user"), Cost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
