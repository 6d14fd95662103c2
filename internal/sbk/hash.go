package sbk

import (
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

// DefaultBlockSize is the read size used when hashing file content.
const DefaultBlockSize = 1 << 20

// Hasher computes content digests by streaming files in fixed-size blocks.
type Hasher struct {
	fsmgr     FilesystemManager
	blockSize int
}

// NewHasher creates a Hasher reading blockSize bytes at a time.
// A non-positive blockSize selects DefaultBlockSize.
func NewHasher(fsmgr FilesystemManager, blockSize int) *Hasher {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Hasher{fsmgr: fsmgr, blockSize: blockSize}
}

// Digest returns the hex-encoded SHA-256 of the file at path.
func (h *Hasher) Digest(path string) (string, error) {
	f, err := h.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	d := digest.SHA256.Digester()
	buf := make([]byte, h.blockSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			d.Hash().Write(buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return d.Digest().Encoded(), nil
}
