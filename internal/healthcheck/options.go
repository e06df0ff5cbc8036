// Package healthcheck stores named health-check procedures and runs them
// against an environment, one database user at a time.
package healthcheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/schema"
)

// DefaultFileName is the option file name inside the data directory.
const DefaultFileName = "healthcheck.json"

var (
	ErrDuplicateOption = errors.New("health-check option already exists")
	ErrOptionNotFound  = errors.New("health-check option not found")
)

// Option is one stored procedure.
type Option struct {
	ProcedureName string `json:"procedure_name,omitempty"`
	// Users is a comma separated list of database users.
	Users       string `json:"users"`
	RunAsSysDBA bool   `json:"run_as_sysdba"`
	OnlyLocal   bool   `json:"only_local"`
	// OracleClient connects through the full tnsnames descriptor.
	OracleClient bool   `json:"oracle_client"`
	PLSQLBlock   string `json:"plsql_block"`
}

// UserList splits Users, trimming blanks and dropping empty entries.
func (o Option) UserList() []string {
	var users []string
	for _, u := range strings.Split(o.Users, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}

// Validate checks the fields a run needs.
func (o Option) Validate() error {
	if len(o.UserList()) == 0 {
		return dserrors.ConfigError{
			Field:      "users",
			Value:      o.Users,
			Message:    "at least one database user is required",
			Suggestion: "Use a comma separated list such as 'APP_USER1,APP_USER2'",
		}
	}
	if strings.TrimSpace(o.PLSQLBlock) == "" {
		return dserrors.ConfigError{
			Field:   "plsql_block",
			Message: "PL/SQL block must not be empty",
		}
	}
	return nil
}

// OptionStore is the option file, rewritten on every mutation.
type OptionStore struct {
	path string

	mu      sync.RWMutex
	options map[string]Option
}

// LoadOptions reads path. A missing file is an empty store.
func LoadOptions(path string) (*OptionStore, error) {
	s := &OptionStore{path: path, options: make(map[string]Option)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read health-check options: %w", err)
	}
	if err := schema.Validate(schema.HealthCheck, data); err != nil {
		return nil, dserrors.ConfigError{
			Field:      "healthcheck",
			Value:      path,
			Message:    err.Error(),
			Suggestion: "Fix the file or recreate the options with 'coredev healthcheck add'",
		}
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &s.options); err != nil {
			return nil, fmt.Errorf("failed to parse health-check options: %w", err)
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *OptionStore) Path() string {
	return s.path
}

// Names returns the option names, sorted.
func (s *OptionStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.options))
	for name := range s.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the named option.
func (s *OptionStore) Get(name string) (Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opt, ok := s.options[name]
	if !ok {
		return Option{}, fmt.Errorf("%w: %q", ErrOptionNotFound, name)
	}
	return opt, nil
}

// Add stores a new option.
func (s *OptionStore) Add(name string, opt Option) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return dserrors.ConfigError{Field: "name", Message: "option name must not be empty"}
	}
	if err := opt.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.options[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateOption, name)
	}
	s.options[name] = opt
	if err := s.saveLocked(); err != nil {
		delete(s.options, name)
		return err
	}
	return nil
}

// Edit replaces an existing option.
func (s *OptionStore) Edit(name string, opt Option) error {
	if err := opt.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.options[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrOptionNotFound, name)
	}
	s.options[name] = opt
	if err := s.saveLocked(); err != nil {
		s.options[name] = prev
		return err
	}
	return nil
}

// Delete removes an option.
func (s *OptionStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.options[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrOptionNotFound, name)
	}
	delete(s.options, name)
	if err := s.saveLocked(); err != nil {
		s.options[name] = prev
		return err
	}
	return nil
}

func (s *OptionStore) saveLocked() error {
	data, err := json.MarshalIndent(s.options, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal health-check options: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create options directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write health-check options: %w", err)
	}
	return nil
}
