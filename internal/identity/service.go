package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"osnova/go-core/internal/securestore"
	"osnova/go-core/internal/storage"
)

const identityPath = "identity/root.enc"

// Status is the answer to "is there an identity on this device".
type Status struct {
	Initialized bool   `json:"initialized"`
	Address     string `json:"address,omitempty"`
}

// Service owns the encrypted identity file. Only the seed phrase is
// persisted; the master key and every derived key are reconstructible from it.
type Service struct {
	mu          sync.Mutex
	store       *storage.FileStore
	platformKey []byte
	log         *slog.Logger
}

func NewService(store *storage.FileStore, platformKey []byte, log *slog.Logger) (*Service, error) {
	if len(platformKey) != securestore.KeySize {
		return nil, securestore.ErrKeySize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:       store,
		platformKey: append([]byte(nil), platformKey...),
		log:         log,
	}, nil
}

// Status reports whether an identity exists. An identity file that cannot be
// decrypted is reported as uninitialized rather than as an error: a
// conservative answer instead of a confusing crash.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Exists(identityPath) {
		return Status{}
	}
	root, err := s.load()
	if err != nil {
		s.log.Warn("identity file unreadable, reporting uninitialized", "error", err)
		return Status{}
	}
	address, err := root.Address()
	if err != nil {
		s.log.Warn("address derivation failed", "error", err)
		return Status{Initialized: true}
	}
	return Status{Initialized: true, Address: address}
}

// Create generates a fresh identity and persists it. Fails closed if one
// already exists: a seed phrase is never silently overwritten.
func (s *Service) Create() (seedPhrase, address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Exists(identityPath) {
		return "", "", fmt.Errorf("%w: import or delete the existing identity first", ErrIdentityExists)
	}
	root, err := Generate()
	if err != nil {
		return "", "", err
	}
	address, err = root.Address()
	if err != nil {
		return "", "", err
	}
	if err := s.save(root); err != nil {
		return "", "", err
	}
	return root.SeedPhrase(), address, nil
}

// ImportWithPhrase restores an identity from a seed-phrase backup. Same
// fail-closed rule as Create.
func (s *Service) ImportWithPhrase(seedPhrase string) (address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Exists(identityPath) {
		return "", fmt.Errorf("%w: delete the existing identity first", ErrIdentityExists)
	}
	root, err := FromSeedPhrase(seedPhrase)
	if err != nil {
		return "", err
	}
	address, err = root.Address()
	if err != nil {
		return "", err
	}
	if err := s.save(root); err != nil {
		return "", err
	}
	return address, nil
}

// Identity reconstructs the root identity for internal collaborators.
func (s *Service) Identity() (*RootIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Exists(identityPath) {
		return nil, ErrNotInitialized
	}
	return s.load()
}

// Delete removes the identity file only. The key vault is a separate
// artifact; cascading deletion is the runtime's decision.
func (s *Service) Delete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(identityPath)
}

func (s *Service) load() (*RootIdentity, error) {
	data, err := s.store.Read(identityPath, s.platformKey)
	if err != nil {
		return nil, err
	}
	var seedPhrase string
	if err := json.Unmarshal(data, &seedPhrase); err != nil {
		return nil, fmt.Errorf("malformed identity document: %w", err)
	}
	root, err := FromSeedPhrase(seedPhrase)
	if err != nil {
		return nil, fmt.Errorf("persisted seed phrase rejected: %w", err)
	}
	return root, nil
}

func (s *Service) save(root *RootIdentity) error {
	data, err := json.Marshal(root.SeedPhrase())
	if err != nil {
		return err
	}
	if err := s.store.Write(identityPath, data, s.platformKey); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	return nil
}
