package database

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const EncryptionKeyLength = 64

// sealer encrypts log lines with key[:32]; key[32:] derives the key check
// stored in the management file so a wrong key is detected on open.
type sealer struct {
	aead  cipher.AEAD
	check string
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != EncryptionKeyLength {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKey, EncryptionKeyLength, len(key))
	}

	aead, err := chacha20poly1305.NewX(key[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	return &sealer{
		aead:  aead,
		check: keyCheck(key),
	}, nil
}

func keyCheck(key []byte) string {
	mac := hmac.New(sha256.New, key[chacha20poly1305.KeySize:])
	mac.Write([]byte("liverepo key check"))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *sealer) matches(check string) bool {
	return hmac.Equal([]byte(s.check), []byte(check))
}

func (s *sealer) seal(plain []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	_, err := rand.Read(nonce)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *sealer) open(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed line too short")
	}
	plain, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err.Error())
	}
	return plain, nil
}
