package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sbk-go/internal/config"
	"sbk-go/internal/encryption"
)

// GenerateKeys creates the age key pair configured under [encryption],
// protecting the private key with passphrase. Existing keys are never
// overwritten.
func GenerateKeys(cfg *config.Config, passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	enc := encryption.NewAgeEncryptor(cfg.Encryption, "")
	for _, p := range []string{cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("key file already exists: %s", p)
		}
	}
	return enc.Setup(passphrase)
}

// DecryptedName returns where a downloaded artifact is decrypted to: its
// name without the encryption suffix, or with ".dec" appended when it has
// none.
func DecryptedName(src string) string {
	for _, ext := range []string{encryption.AgeExtension, encryption.TestExtension} {
		if trimmed, ok := strings.CutSuffix(src, ext); ok && trimmed != "" {
			return trimmed
		}
	}
	return src + ".dec"
}

// DecryptFile decrypts the artifact at src into dst, unlocking the private
// key with passphrase. dst must not exist.
func DecryptFile(cfg *config.Config, passphrase, src, dst string) error {
	unlocker, err := encryption.NewUnlockerFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	dc, err := unlocker.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if err := dc.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("decrypting %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return nil
}
