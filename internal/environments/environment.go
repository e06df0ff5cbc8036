// Package environments holds the directory of named Oracle database targets
// parsed from tnsnames.ora and the rules that classify them.
package environments

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownEnvironment is returned when a name is not present in the directory.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environment is a named database target.
type Environment struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	ServiceName string `json:"service_name"`

	// Descriptor is the raw connect descriptor of the tnsnames entry.
	Descriptor string `json:"-"`
}

// UniqueName is the local credential cache key of the environment.
func (e Environment) UniqueName() string {
	return e.Host + "_" + e.ServiceName
}

// Directory is a read-only name-keyed set of environments.
type Directory struct {
	source string
	envs   map[string]Environment
}

// NewDirectory builds a directory from already parsed environments.
func NewDirectory(source string, envs map[string]Environment) *Directory {
	copied := make(map[string]Environment, len(envs))
	for name, env := range envs {
		copied[strings.ToUpper(name)] = env
	}
	return &Directory{source: source, envs: copied}
}

// Source returns the file the directory was loaded from.
func (d *Directory) Source() string {
	return d.source
}

// Get returns the environment registered under name. Lookup is case-insensitive.
func (d *Directory) Get(name string) (Environment, error) {
	env, ok := d.envs[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Environment{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	return env, nil
}

// Names returns all environment names, sorted.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.envs))
	for name := range d.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of environments.
func (d *Directory) Len() int {
	return len(d.envs)
}

// Filter returns the names of environments accepted by keep, sorted.
func (d *Directory) Filter(keep func(Environment) bool) []string {
	var names []string
	for _, name := range d.Names() {
		if keep(d.envs[name]) {
			names = append(names, name)
		}
	}
	return names
}
