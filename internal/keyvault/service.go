package keyvault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"osnova/go-core/internal/platform/ratelimiter"
	"osnova/go-core/internal/securestore"
	"osnova/go-core/internal/storage"
)

const cocoonPath = "identity/keys.cocoon"

var (
	ErrVaultMissing    = errors.New("key vault is not initialized")
	ErrKeyNotFound     = errors.New("key not found")
	ErrLookupThrottled = errors.New("public key lookups are throttled")
)

// DerivationResult is what components get back from a derive call. No secret
// material.
type DerivationResult struct {
	PublicKey string `json:"public_key"`
	Index     uint64 `json:"index"`
	CreatedAt int64  `json:"created_at"`
}

// SecretKeyResult answers a public-key lookup.
type SecretKeyResult struct {
	SecretKey   string `json:"secret_key"`
	ComponentID string `json:"component_id"`
	Index       uint64 `json:"index"`
}

// KeyInfo is one entry of a component listing.
type KeyInfo struct {
	PublicKey string  `json:"public_key"`
	Index     uint64  `json:"index"`
	KeyType   KeyType `json:"key_type"`
	CreatedAt int64   `json:"created_at"`
}

// Service orchestrates vault load/mutate/save. Every mutation is a full
// decrypt-modify-encrypt rewrite of the vault file, serialized by the
// service mutex.
type Service struct {
	mu        sync.Mutex
	store     *storage.FileStore
	cocoonKey []byte
	lookups   *ratelimiter.MapLimiter
}

// NewService wires the vault onto an encrypted file store. cocoonKey
// protects the vault file; lookups may be nil to disable throttling.
func NewService(store *storage.FileStore, cocoonKey []byte, lookups *ratelimiter.MapLimiter) (*Service, error) {
	if len(cocoonKey) != securestore.KeySize {
		return nil, securestore.ErrKeySize
	}
	return &Service{
		store:     store,
		cocoonKey: append([]byte(nil), cocoonKey...),
		lookups:   lookups,
	}, nil
}

// Initialize creates the vault for masterKey on first use only. A vault that
// already exists is left untouched, so the master key can never be rotated
// by accident.
func (s *Service) Initialize(masterKey [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Exists(cocoonPath) {
		return nil
	}
	return s.save(NewKeyCocoon(masterKey))
}

// Derive creates a key for the component at the next free index
// (highest used + 1, starting at 0).
func (s *Service) Derive(componentID string, keyType KeyType) (DerivationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cocoon, err := s.load()
	if err != nil {
		return DerivationResult{}, err
	}
	nextIndex := uint64(0)
	if highest, ok := cocoon.HighestIndex(componentID); ok {
		nextIndex = highest + 1
	}
	return s.deriveLocked(cocoon, componentID, nextIndex, keyType)
}

// DeriveAtIndex derives at a caller-chosen index. Idempotent: an existing
// entry at that slot is returned verbatim, regardless of the requested type.
func (s *Service) DeriveAtIndex(componentID string, index uint64, keyType KeyType) (DerivationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cocoon, err := s.load()
	if err != nil {
		return DerivationResult{}, err
	}
	if entry, ok := cocoon.GetKey(componentID, index); ok {
		return DerivationResult{
			PublicKey: entry.PublicKey,
			Index:     entry.Index,
			CreatedAt: entry.CreatedAt,
		}, nil
	}
	return s.deriveLocked(cocoon, componentID, index, keyType)
}

// GetByPublicKey returns the secret key owning the given public key. Secret-
// revealing, so lookups are throttled when a limiter is wired.
func (s *Service) GetByPublicKey(publicKey string) (SecretKeyResult, error) {
	if !s.lookups.Allow("keys.getByPublicKey", time.Now()) {
		return SecretKeyResult{}, ErrLookupThrottled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cocoon, err := s.load()
	if err != nil {
		return SecretKeyResult{}, err
	}
	entry, ok := cocoon.GetByPublicKey(publicKey)
	if !ok {
		lookupMissesTotal.Inc()
		return SecretKeyResult{}, fmt.Errorf("%w: no entry for public key", ErrKeyNotFound)
	}
	return SecretKeyResult{
		SecretKey:   entry.SecretKey,
		ComponentID: entry.ComponentID,
		Index:       entry.Index,
	}, nil
}

// ListForComponent lists the component's keys, oldest index first.
func (s *Service) ListForComponent(componentID string) ([]KeyInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cocoon, err := s.load()
	if err != nil {
		return nil, err
	}
	entries := cocoon.ListKeys(componentID)
	infos := make([]KeyInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, KeyInfo{
			PublicKey: entry.PublicKey,
			Index:     entry.Index,
			KeyType:   entry.KeyType,
			CreatedAt: entry.CreatedAt,
		})
	}
	return infos, nil
}

func (s *Service) deriveLocked(cocoon *KeyCocoon, componentID string, index uint64, keyType KeyType) (DerivationResult, error) {
	seed, err := DeriveSymmetricKey(cocoon.MasterKey, componentID, index)
	if err != nil {
		return DerivationResult{}, err
	}
	pair, err := GenerateKeyPair(seed, keyType)
	if err != nil {
		return DerivationResult{}, err
	}

	entry := DerivedKeyEntry{
		PublicKey:   base64.StdEncoding.EncodeToString(pair.PublicKey),
		SecretKey:   base64.StdEncoding.EncodeToString(pair.SecretKey),
		ComponentID: componentID,
		Index:       index,
		CreatedAt:   time.Now().Unix(),
		KeyType:     keyType,
	}
	cocoon.AddKey(entry)
	if err := s.save(cocoon); err != nil {
		return DerivationResult{}, err
	}
	derivationsTotal.WithLabelValues(string(keyType)).Inc()

	return DerivationResult{
		PublicKey: entry.PublicKey,
		Index:     entry.Index,
		CreatedAt: entry.CreatedAt,
	}, nil
}

func (s *Service) load() (*KeyCocoon, error) {
	data, err := s.store.Read(cocoonPath, s.cocoonKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrVaultMissing
		}
		return nil, fmt.Errorf("read key vault: %w", err)
	}
	var cocoon KeyCocoon
	if err := json.Unmarshal(data, &cocoon); err != nil {
		return nil, fmt.Errorf("malformed key vault document: %w", err)
	}
	if cocoon.DerivedKeys == nil {
		cocoon.DerivedKeys = make(map[string]DerivedKeyEntry)
	}
	return &cocoon, nil
}

func (s *Service) save(cocoon *KeyCocoon) error {
	data, err := json.Marshal(cocoon)
	if err != nil {
		return fmt.Errorf("serialize key vault: %w", err)
	}
	if err := s.store.Write(cocoonPath, data, s.cocoonKey); err != nil {
		return fmt.Errorf("write key vault: %w", err)
	}
	vaultRewritesTotal.Inc()
	return nil
}
