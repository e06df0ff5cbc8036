// Package credstore is the local encrypted credential cache: a JSON file
// mapping environment keys to usernames to sealed passwords.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/schema"
)

// DefaultFileName is the cache file name inside the data directory.
const DefaultFileName = "environment_credentials.json"

// Sealer encrypts and decrypts cached values.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(token string) (string, error)
}

// Store is loaded fully into memory on open and rewritten on every mutation.
type Store struct {
	path   string
	sealer Sealer
	logger *logging.Logger

	mu      sync.RWMutex
	entries map[string]map[string]string
}

// Open loads the cache at path. A missing file is an empty cache; a corrupt
// file is logged and treated as empty.
func Open(path string, sealer Sealer, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Store{
		path:    path,
		sealer:  sealer,
		logger:  logger,
		entries: make(map[string]map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read credential cache: %w", err)
	}

	if err := schema.Validate(schema.Credentials, data); err != nil {
		logger.Warn("Ignoring unreadable credential cache %s: %v", path, err)
		return s, nil
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			logger.Warn("Ignoring unreadable credential cache %s: %v", path, err)
			s.entries = make(map[string]map[string]string)
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a password is cached for (env, user).
func (s *Store) Exists(env, user string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[env][user]
	return ok
}

// Get returns the decrypted password for (env, user).
func (s *Store) Get(env, user string) (string, bool, error) {
	s.mu.RLock()
	token, ok := s.entries[env][user]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	plain, err := s.sealer.Open(token)
	if err != nil {
		return "", true, fmt.Errorf("cached password for %s@%s: %w", user, env, err)
	}
	return plain, true, nil
}

// Put stores password for (env, user) and saves the file.
func (s *Store) Put(env, user, password string) error {
	token, err := s.sealer.Seal(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.entries[env]
	if !ok {
		users = make(map[string]string)
		s.entries[env] = users
	}
	users[user] = token
	return s.saveLocked()
}

// DeleteEnvironment drops every cached password of env.
func (s *Store) DeleteEnvironment(env string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[env]; !ok {
		return nil
	}
	delete(s.entries, env)
	return s.saveLocked()
}

// DeleteUser drops a single cached password.
func (s *Store) DeleteUser(env, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.entries[env]
	if !ok {
		return nil
	}
	if _, ok := users[user]; !ok {
		return nil
	}
	delete(users, user)
	if len(users) == 0 {
		delete(s.entries, env)
	}
	return s.saveLocked()
}

// Environments returns the cached environment keys, sorted.
func (s *Store) Environments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Users returns the cached usernames of env, sorted.
func (s *Store) Users(env string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.entries[env]))
	for u := range s.entries[env] {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace credential cache: %w", err)
	}
	return nil
}
