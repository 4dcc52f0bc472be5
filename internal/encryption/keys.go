package encryption

import (
	"context"
	"crypto/sha256"
	"errors"
)

// ErrEmptyPassphrase is returned when a passphrase key has no value.
var ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

// PassphraseKey derives the master key as SHA-256 of the passphrase.
type PassphraseKey string

// Key implements KeyProvider.
func (p PassphraseKey) Key(context.Context) ([]byte, error) {
	if p == "" {
		return nil, ErrEmptyPassphrase
	}
	sum := sha256.Sum256([]byte(p))
	return sum[:], nil
}

// StaticKey hands out a fixed 32-byte key.
type StaticKey []byte

// Key implements KeyProvider.
func (k StaticKey) Key(context.Context) ([]byte, error) {
	if len(k) != KeySize {
		return nil, ErrInvalidKey
	}
	return []byte(k), nil
}
