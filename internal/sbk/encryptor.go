package sbk

import "io"

// Encryptor encrypts artifacts for a configured key identity before upload.
// Encryption uses public material only, so no user interaction is needed
// during a scheduled run.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Extension is the suffix appended to encrypted artifact names.
	Extension() string
}

// DecryptionContext holds unlocked key material for restoring artifacts.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
