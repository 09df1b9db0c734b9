package config

import "fmt"

// Store is a persistent key/value configuration store. Set persists the
// write before returning; there is no transaction across keys.
type Store interface {
	// Get returns the value of key and whether it is present.
	Get(key string) (string, bool, error)

	// Set assigns and persists key.
	Set(key, value string) error

	// AsMap returns a copy of every key in the active profile.
	AsMap() (map[string]string, error)

	// Version returns the schema version the store was written with,
	// or "" when none is recorded.
	Version() string

	// Close releases the store. Further calls fail.
	Close() error
}

var errClosed = fmt.Errorf("config store is closed")

// MemoryStore is an in-memory Store. It backs dry runs and tests.
type MemoryStore struct {
	values  map[string]string
	version string
	closed  bool

	// Writes counts successful Set calls.
	Writes int
}

// NewMemoryStore returns a MemoryStore holding a copy of initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	m := &MemoryStore{values: make(map[string]string, len(initial))}
	for k, v := range initial {
		m.values[k] = v
	}
	m.version = m.values[KeyConfigVersion]
	return m
}

// Get implements Store.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	if m.closed {
		return "", false, errClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(key, value string) error {
	if m.closed {
		return errClosed
	}
	m.values[key] = value
	if key == KeyConfigVersion {
		m.version = value
	}
	m.Writes++
	return nil
}

// AsMap implements Store.
func (m *MemoryStore) AsMap() (map[string]string, error) {
	if m.closed {
		return nil, errClosed
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Version implements Store.
func (m *MemoryStore) Version() string {
	return m.version
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.closed = true
	return nil
}
