package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// Master-key derivation is versioned through the salt label; changing it
// would orphan every existing identity.
const masterKeySalt = "osnova-master-key-v1"

// Generate creates a fresh identity from 128 bits of entropy (12 words).
func Generate() (*RootIdentity, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return fromMnemonic(mnemonic)
}

// FromSeedPhrase validates and imports an existing 12-word phrase.
func FromSeedPhrase(seedPhrase string) (*RootIdentity, error) {
	mnemonic := strings.Join(strings.Fields(seedPhrase), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidSeedPhrase
	}
	return fromMnemonic(mnemonic)
}

func fromMnemonic(mnemonic string) (*RootIdentity, error) {
	// BIP-39 seed with an empty passphrase, then HKDF down to 256 bits.
	seed := bip39.NewSeed(mnemonic, "")
	key, err := hkdfExpand(seed, []byte(masterKeySalt), nil, 32)
	if err != nil {
		return nil, fmt.Errorf("master key derivation: %w", err)
	}
	r := &RootIdentity{seedPhrase: mnemonic}
	copy(r.masterKey[:], key)
	return r, nil
}

// Fingerprint hashes the master key alone. Non-secret; recognizes "the same
// identity" without revealing the seed.
func (r *RootIdentity) Fingerprint() [32]byte {
	return blake2b.Sum256(r.masterKey[:])
}

// DeriveComponentKey derives a 32-byte key scoped to a component, index and
// purpose. Each of master key, component id, index and purpose independently
// changes the output; nothing else may.
func (r *RootIdentity) DeriveComponentKey(componentID string, index uint64, purpose string) ([]byte, error) {
	salt := fmt.Sprintf("%s-%s", componentID, purpose)
	info := make([]byte, 8)
	binary.LittleEndian.PutUint64(info, index)
	key, err := hkdfExpand(r.masterKey[:], []byte(salt), info, 32)
	if err != nil {
		return nil, fmt.Errorf("component key derivation: %w", err)
	}
	return key, nil
}

func hkdfExpand(secret, salt, info []byte, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
