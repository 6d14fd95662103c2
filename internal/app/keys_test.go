package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"sbk-go/internal/config"
	"sbk-go/internal/encryption"
)

func keyConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{Encryption: config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "sbk.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "sbk.key"),
	}}
}

func TestGenerateKeysAndDecrypt(t *testing.T) {
	cfg := keyConfig(t)
	if err := GenerateKeys(cfg, "hunter2"); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption, "")
	if err != nil {
		t.Fatalf("NewEncryptorFromConfig() error = %v", err)
	}
	var ciphertext bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader([]byte("restore me")), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	src := filepath.Join(t.TempDir(), "notes.txt.age")
	if err := os.WriteFile(src, ciphertext.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	dst := DecryptedName(src)

	t.Run("wrong passphrase", func(t *testing.T) {
		if err := DecryptFile(cfg, "wrong", src, dst); err == nil {
			t.Error("DecryptFile() expected error")
		}
		if _, err := os.Stat(dst); err == nil {
			t.Error("output created despite failure")
		}
	})

	t.Run("correct passphrase", func(t *testing.T) {
		if err := DecryptFile(cfg, "hunter2", src, dst); err != nil {
			t.Fatalf("DecryptFile() error = %v", err)
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "restore me" {
			t.Errorf("plaintext = %q", data)
		}
	})

	t.Run("existing output is kept", func(t *testing.T) {
		if err := DecryptFile(cfg, "hunter2", src, dst); err == nil {
			t.Error("DecryptFile() expected error for existing output")
		}
	})

	t.Run("keys are not regenerated", func(t *testing.T) {
		if err := GenerateKeys(cfg, "other"); err == nil {
			t.Error("GenerateKeys() expected error for existing keys")
		}
	})
}

func TestGenerateKeys_EmptyPassphrase(t *testing.T) {
	if err := GenerateKeys(keyConfig(t), ""); err == nil {
		t.Error("GenerateKeys() expected error")
	}
}

func TestDecryptedName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a/notes.txt.gz.age", want: "a/notes.txt.gz"},
		{in: "notes.txt.enc", want: "notes.txt"},
		{in: "notes.bin", want: "notes.bin.dec"},
		{in: ".age", want: ".age.dec"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DecryptedName(tt.in); got != tt.want {
				t.Errorf("DecryptedName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
