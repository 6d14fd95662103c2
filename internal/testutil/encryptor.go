package testutil

import (
	"io"
	"sync"

	"sbk-go/internal/encryption"
	"sbk-go/internal/sbk"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// FlakyEncryptor fails its first Failures calls after writing some garbage,
// then behaves like the test encryptor.
type FlakyEncryptor struct {
	Failures int

	mu    sync.Mutex
	calls int
	inner *encryption.TestEncryptor
}

// NewFlakyEncryptor creates an encryptor failing the first failures calls.
// A negative count fails every call.
func NewFlakyEncryptor(failures int) *FlakyEncryptor {
	return &FlakyEncryptor{Failures: failures, inner: encryption.NewTestEncryptor()}
}

func (e *FlakyEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	e.mu.Lock()
	e.calls++
	fail := e.Failures < 0 || e.calls <= e.Failures
	e.mu.Unlock()

	if fail {
		w.Write([]byte("partial"))
		return ErrInjected
	}
	return e.inner.Encrypt(r, w)
}

func (e *FlakyEncryptor) Extension() string {
	return e.inner.Extension()
}

// Calls returns how many times Encrypt was called.
func (e *FlakyEncryptor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var _ sbk.Encryptor = (*FlakyEncryptor)(nil)
