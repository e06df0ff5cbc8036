// Package cipher seals the values coredev keeps on disk: cached database
// passwords and the secret-store role and secret ids.
package cipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the length of a raw key in bytes.
	KeySize   = 32
	nonceSize = 24
)

// ErrDecrypt is returned when a token cannot be opened with the current key.
var ErrDecrypt = errors.New("failed to decrypt value")

// Cipher seals and opens short strings with a symmetric key.
type Cipher struct {
	key [KeySize]byte
}

// New returns a cipher for a raw key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d, want %d", len(key), KeySize)
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts plain and returns a printable token.
func (c *Cipher) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &c.key)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Open decrypts a token produced by Seal.
func (c *Cipher) Open(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: token too short", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
