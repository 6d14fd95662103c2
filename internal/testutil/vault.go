package testutil

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"sbk-go/internal/sbk"
	"sbk-go/internal/vault"
)

// ErrInjected is returned by the failing fakes in this package.
var ErrInjected = errors.New("injected failure")

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// FailingVault wraps a MemoryVault and rejects every key containing one of
// the configured substrings.
type FailingVault struct {
	*vault.MemoryVault

	mu       sync.Mutex
	failKeys []string
	attempts map[string]int
}

// NewFailingVault creates a vault that fails uploads of keys containing any
// of failKeys.
func NewFailingVault(failKeys ...string) *FailingVault {
	return &FailingVault{
		MemoryVault: vault.NewMemoryVault("failing-vault"),
		failKeys:    failKeys,
		attempts:    make(map[string]int),
	}
}

func (v *FailingVault) Put(ctx context.Context, key string, r io.Reader, size int64, metadata map[string]string) error {
	v.mu.Lock()
	v.attempts[key]++
	v.mu.Unlock()

	for _, k := range v.failKeys {
		if strings.Contains(key, k) {
			io.Copy(io.Discard, r)
			return ErrInjected
		}
	}
	return v.MemoryVault.Put(ctx, key, r, size, metadata)
}

// Attempts returns how many times key was uploaded.
func (v *FailingVault) Attempts(key string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.attempts[key]
}

var _ sbk.Vault = (*FailingVault)(nil)
