package securestore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the required length of every envelope key.
	KeySize = chacha20poly1305.KeySize

	envelopeVersion = 2

	prefixV2 = "OSNENC2\n"
	// Version 1 envelopes were sealed under a fixed all-zero nonce, making
	// encryption deterministic. They are still readable; every rewrite
	// produces a version 2 envelope with a fresh random nonce.
	prefixV1 = "OSNENC1\n"
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrKeySize    = errors.New("securestore key must be 32 bytes")
)

type envelope struct {
	Version    uint32 `json:"version"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// Encrypt seals plaintext under a 256-bit key into a self-describing
// version 2 envelope with a random per-write nonce.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	env := envelope{
		Version:    envelopeVersion,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(prefixV2), raw...), nil
}

// Decrypt opens a version 1 or version 2 envelope. Tampering or a wrong key
// surfaces as ErrAuthFailed, never as garbage plaintext.
func Decrypt(key, data []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	var env envelope
	switch {
	case hasPrefix(data, prefixV2):
		if err := json.Unmarshal(data[len(prefixV2):], &env); err != nil {
			return nil, ErrInvalid
		}
		if env.Version != envelopeVersion || len(env.Nonce) != chacha20poly1305.NonceSizeX {
			return nil, ErrInvalid
		}
	case hasPrefix(data, prefixV1):
		if err := json.Unmarshal(data[len(prefixV1):], &env); err != nil {
			return nil, ErrInvalid
		}
		if env.Version != 1 || len(env.Nonce) != 0 {
			return nil, ErrInvalid
		}
		env.Nonce = make([]byte, chacha20poly1305.NonceSizeX)
	default:
		return nil, ErrInvalid
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	return chacha20poly1305.NewX(key)
}

func hasPrefix(data []byte, prefix string) bool {
	return len(data) >= len(prefix) && string(data[:len(prefix)]) == prefix
}
