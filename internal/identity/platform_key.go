package identity

import (
	"crypto/rand"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"

	"osnova/go-core/internal/securestore"
)

const (
	storagePassphraseEnv = "OSNOVA_STORAGE_PASSPHRASE"
	platformKeyLabel     = "osnova-platform-key-v1"

	argonTime    = uint32(2)
	argonMemKB   = uint32(64 * 1024)
	argonThreads = uint8(1)
)

// PlatformKey resolves the key that protects the identity file.
//
// When OSNOVA_STORAGE_PASSPHRASE is set, the passphrase is stretched with
// argon2id against a random salt persisted under dataDir. Otherwise a
// deterministic development placeholder is returned; production deployments
// must supply the passphrase or integrate a platform keystore
// (DPAPI/Keychain/Secret Service).
func PlatformKey(dataDir string) ([]byte, error) {
	if passphrase := strings.TrimSpace(os.Getenv(storagePassphraseEnv)); passphrase != "" {
		salt, err := loadOrCreateSalt(filepath.Join(dataDir, "storage.salt"))
		if err != nil {
			return nil, err
		}
		return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemKB, argonThreads, securestore.KeySize), nil
	}
	sum := blake2b.Sum256([]byte(platformKeyLabel))
	return sum[:], nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	existing, err := os.ReadFile(path)
	if err == nil && len(existing) == 16 {
		return existing, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}
