// Package keygen turns a password into the 64-byte key used to encrypt a
// database file at rest.
package keygen

import (
	"crypto/sha256"
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultSalt is used when the caller does not provide one. Changing it makes
// every existing encrypted database unreadable.
const DefaultSalt = "91F1F352-F246-4D9C-9BAF-E355A3BABBB6"

const (
	Iterations = 600_000
	KeyLength  = 64
)

var ErrKeyDerivationFailed = errors.New("unable to generate key")

// DeriveKey derives a key with PBKDF2-HMAC-SHA256. A nil salt means
// DefaultSalt. The result is deterministic for the same inputs.
func DeriveKey(password string, salt *string) ([]byte, error) {
	s := DefaultSalt
	if salt != nil {
		s = *salt
	}

	if password == "" || s == "" {
		return nil, ErrKeyDerivationFailed
	}
	if !utf8.ValidString(password) || !utf8.ValidString(s) {
		return nil, ErrKeyDerivationFailed
	}

	key := pbkdf2.Key([]byte(password), []byte(s), Iterations, KeyLength, sha256.New)
	if len(key) != KeyLength {
		return nil, ErrKeyDerivationFailed
	}

	return key, nil
}
