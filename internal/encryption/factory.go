package encryption

import (
	"fmt"

	"sbk-go/internal/config"
	"sbk-go/internal/sbk"
)

// Unlocker turns a passphrase into a decryption context.
type Unlocker interface {
	Unlock(passphrase string) (sbk.DecryptionContext, error)
}

// NewEncryptorFromConfig creates the Encryptor for a job with the given key
// identity. The key identity is resolved immediately so a job with an
// unusable key fails before any file is processed.
func NewEncryptorFromConfig(cfg config.EncryptionConfig, keyID string) (sbk.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		e := NewAgeEncryptor(cfg, keyID)
		if _, err := e.Recipients(); err != nil {
			return nil, fmt.Errorf("resolving encryption key: %w", err)
		}
		return e, nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

// NewUnlockerFromConfig returns the key material holder used to decrypt
// restored artifacts.
func NewUnlockerFromConfig(cfg config.EncryptionConfig) (Unlocker, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg, ""), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
