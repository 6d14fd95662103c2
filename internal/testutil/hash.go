package testutil

import (
	"crypto/sha256"
	"fmt"
)

// SHA256Hex returns the digest sbk.Hasher is expected to record for data.
// Computed in one shot so block-wise hashing is checked against a separate path.
func SHA256Hex(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
