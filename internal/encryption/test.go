package encryption

import (
	"bytes"
	"fmt"
	"io"

	"sbk-go/internal/sbk"
)

// TestExtension is appended to artifacts encrypted by TestEncryptor.
const TestExtension = ".enc"

// testHeader is prepended to data by TestEncryptor.
var testHeader = []byte("SBKENC\x00\x00")

// TestEncryptor is a deterministic, reversible encryptor for tests and dry
// configurations. It prepends a fixed 8-byte header to the plaintext.
type TestEncryptor struct{}

var _ sbk.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Extension() string {
	return TestExtension
}

// Unlock ignores the passphrase.
func (e *TestEncryptor) Unlock(string) (sbk.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ sbk.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
