package securestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadDecryptedFile reads path and opens the envelope with key.
func ReadDecryptedFile(path string, key []byte) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decrypt(key, raw)
}

// WriteEncryptedFile seals data under key and writes it to path, creating
// parent directories. The write goes to a temporary sibling first and is
// moved into place with a rename, so a crash mid-write leaves the previous
// file intact.
func WriteEncryptedFile(path string, key, data []byte) error {
	encrypted, err := Encrypt(key, data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
