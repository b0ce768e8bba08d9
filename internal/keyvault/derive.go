package keyvault

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// derivationInfoTag versions the vault derivation path. Paired with the
// component id as salt and the little-endian index it forms the full
// domain-separation context.
const derivationInfoTag = "osnova-v1-key-derivation"

var ErrUnsupportedKeyType = errors.New("unsupported key type")

// KeyPair holds raw key bytes for one derivation.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
	Type      KeyType
}

// DeriveSymmetricKey yields the 32-byte seed for (masterKey, componentID,
// index). Pure function: same inputs, same output, always.
func DeriveSymmetricKey(masterKey []byte, componentID string, index uint64) ([]byte, error) {
	info := make([]byte, 0, len(derivationInfoTag)+8)
	info = append(info, derivationInfoTag...)
	info = binary.LittleEndian.AppendUint64(info, index)

	reader := hkdf.New(sha256.New, masterKey, []byte(componentID), info)
	seed := make([]byte, 32)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, fmt.Errorf("vault key derivation: %w", err)
	}
	return seed, nil
}

// GenerateKeyPair turns a 32-byte seed into a key pair of the requested type.
// Ed25519 treats the seed as the signing-key seed; X25519 treats it as the
// scalar and computes scalar·basepoint.
func GenerateKeyPair(seed []byte, keyType KeyType) (KeyPair, error) {
	if len(seed) != 32 {
		return KeyPair{}, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}
	switch keyType {
	case KeyTypeEd25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return KeyPair{
			PublicKey: append([]byte(nil), pub...),
			SecretKey: append([]byte(nil), seed...),
			Type:      KeyTypeEd25519,
		}, nil
	case KeyTypeX25519:
		pub, err := curve25519.X25519(seed, curve25519.Basepoint)
		if err != nil {
			return KeyPair{}, fmt.Errorf("x25519 public key: %w", err)
		}
		return KeyPair{
			PublicKey: pub,
			SecretKey: append([]byte(nil), seed...),
			Type:      KeyTypeX25519,
		}, nil
	case KeyTypeSecp256k1:
		return KeyPair{}, fmt.Errorf("%w: %s is reserved", ErrUnsupportedKeyType, keyType)
	default:
		return KeyPair{}, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
	}
}
