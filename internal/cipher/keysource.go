package cipher

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// SourceFile keeps the key in a file next to the data files.
	SourceFile = "file"
	// SourceKeyring keeps the key in the OS keyring.
	SourceKeyring = "keyring"

	keyringService = "coredev"
	keyringAccount = "credential-key"
)

// LoadOrGenerate returns the cipher for the configured key source, creating
// and persisting a new key when none exists yet.
func LoadOrGenerate(source, keyFile string) (*Cipher, error) {
	switch source {
	case "", SourceFile:
		return loadFromFile(keyFile)
	case SourceKeyring:
		return loadFromKeyring()
	default:
		return nil, fmt.Errorf("unsupported key source: %s", source)
	}
}

func loadFromFile(path string) (*Cipher, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := decodeKey(string(data))
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		return New(key)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(encodeKey(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return New(key)
}

func loadFromKeyring() (*Cipher, error) {
	stored, err := keyring.Get(keyringService, keyringAccount)
	if err == nil {
		key, err := decodeKey(stored)
		if err != nil {
			return nil, fmt.Errorf("keyring entry: %w", err)
		}
		return New(key)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("failed to read key from keyring: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := keyring.Set(keyringService, keyringAccount, encodeKey(key)); err != nil {
		return nil, fmt.Errorf("failed to store key in keyring: %w", err)
	}
	return New(key)
}

func encodeKey(key []byte) string {
	return base64.URLEncoding.EncodeToString(key)
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	return key, nil
}
