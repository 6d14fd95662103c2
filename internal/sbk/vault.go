package sbk

import (
	"context"
	"io"
)

// Vault is an object storage backend that receives backup artifacts.
// Put streams from r so large artifacts are never held in memory.
type Vault interface {
	// Put stores size bytes read from r under key, attaching metadata to
	// the object. Put is not retried by the caller.
	Put(ctx context.Context, key string, r io.Reader, size int64, metadata map[string]string) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
