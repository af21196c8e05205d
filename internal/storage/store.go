// Package storage defines the byte-oriented key-value interface internal/fakeserver
// uses to back each namespace+set record map. See doc.go for an overview.
package storage

import (
	"errors"
	"sync"
)

// ErrKeyNotFound is returned by Get for an absent key. The fake server's
// getRecord treats it, like any Get error, as a miss, which dispatchRecord
// turns into types.KeyNotFound where the operation needs the record.
var ErrKeyNotFound = errors.New("key not found")

// Store is a minimal synchronous key-value interface. fakeserver keys it by
// hex-encoded digest and stores JSON-marshaled storedRecord values; nothing
// about the interface is digest- or record-aware, so a different backend
// (on-disk, remote) could be substituted without touching fakeserver's
// dispatch logic.
//
// Implementations must be safe for concurrent use and must not retain the
// byte slices passed to Put or returned from Get — callers are free to
// mutate them afterward.
type Store interface {
	// Get returns ErrKeyNotFound if key is absent.
	Get(key string) ([]byte, error)

	// Put creates or overwrites key.
	Put(key string, value []byte) error

	// Delete is idempotent: no error if key is already absent.
	Delete(key string) error

	// List returns a snapshot of all keys, order unspecified.
	List() []string

	// Stats reports current key and byte counts.
	Stats() StoreStats
}

// StoreStats is a point-in-time snapshot, not a live view.
type StoreStats struct {
	Keys  int
	Bytes int
}

// MemoryStore is an in-memory Store with no persistence across restarts.
// This is the only backend fakeserver uses; each namespace+set pair gets
// its own instance (see fakeserver.storeFor).
type MemoryStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryStore returns an empty, ready-to-use store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists {
		return nil, ErrKeyNotFound
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored

	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalBytes := 0
	for _, value := range m.data {
		totalBytes += len(value)
	}

	return StoreStats{
		Keys:  len(m.data),
		Bytes: totalBytes,
	}
}
