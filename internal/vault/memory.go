package vault

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"sbk-go/internal/sbk"
)

// Object is a stored object and its metadata.
type Object struct {
	Data     []byte
	Metadata map[string]string
}

// MemoryVault is an in-memory implementation of the Vault interface.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name    string
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:    name,
		objects: make(map[string]Object),
	}
}

// Put stores an object, replacing any previous object under key.
func (m *MemoryVault) Put(ctx context.Context, key string, r io.Reader, size int64, metadata map[string]string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: data, Metadata: maps.Clone(metadata)}
	return nil
}

// Object returns the object stored under key.
func (m *MemoryVault) Object(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns the stored keys, sorted.
func (m *MemoryVault) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.objects))
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements sbk.Vault interface
var _ sbk.Vault = (*MemoryVault)(nil)
