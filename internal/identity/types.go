package identity

import "errors"

var (
	ErrInvalidSeedPhrase = errors.New("invalid seed phrase")
	ErrIdentityExists    = errors.New("identity already exists")
	ErrNotInitialized    = errors.New("identity is not initialized")
)

// RootIdentity holds the seed phrase and the master key derived from it.
// Both fields are secret; the type never serializes them and callers must not
// log them. Fingerprints are the only safe-to-expose representation.
type RootIdentity struct {
	seedPhrase string
	masterKey  [32]byte
}

// SeedPhrase returns the 12-word mnemonic. Backup/export flows only.
func (r *RootIdentity) SeedPhrase() string {
	return r.seedPhrase
}

// MasterKey returns a copy of the 256-bit master key.
func (r *RootIdentity) MasterKey() [32]byte {
	return r.masterKey
}
