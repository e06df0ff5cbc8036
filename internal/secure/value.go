package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed Value is read.
var ErrDestroyed = errors.New("secure value has been destroyed")

// Value holds one secret encrypted at rest in memory.
type Value struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewValue seals s. The empty string is representable; memguard refuses
// zero-length enclaves so it is tracked with a flag instead.
func NewValue(s string) *Value {
	if s == "" {
		return &Value{empty: true}
	}
	return &Value{enclave: memguard.NewEnclave([]byte(s))}
}

// IsEmpty reports whether the sealed value is the empty string.
func (v *Value) IsEmpty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.empty
}

// Use decrypts the value into a locked buffer, passes its bytes to fn and
// wipes the buffer afterwards. fn must not retain the slice.
func (v *Value) Use(fn func([]byte) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.destroyed {
		return ErrDestroyed
	}
	if v.empty {
		return fn(nil)
	}

	locked, err := v.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// Reveal returns a plain copy. Only for values that must leave the process,
// such as a request body.
func (v *Value) Reveal() (string, error) {
	var out string
	err := v.Use(func(b []byte) error {
		out = string(b)
		return nil
	})
	return out, err
}

// Destroy drops the enclave. Idempotent.
func (v *Value) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enclave = nil
	v.destroyed = true
}

// Purge wipes all memguard state. Call once at exit.
func Purge() {
	memguard.Purge()
}
