package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"osnova/go-core/internal/identity"
	"osnova/go-core/internal/keyvault"
	"osnova/go-core/internal/platform/ratelimiter"
	"osnova/go-core/internal/storage"
)

var (
	ErrNotReady       = errors.New("runtime is not started")
	ErrAlreadyStarted = errors.New("runtime is already started")
)

// identityDir is the file-store subtree holding identity material. Wipe
// removes it as a unit so the identity file and the key vault can never
// outlive each other.
const identityDir = "identity"

// Lookup throttle for the secret-revealing key lookups.
const (
	lookupRPS     = 5.0
	lookupBurst   = 10
	lookupIdleTTL = 10 * time.Minute
)

type runtimeState int

const (
	stateUninitialized runtimeState = iota
	stateReady
)

// Runtime composes stores and services for one data directory. It moves
// through an explicit lifecycle: accessors refuse to hand out services
// before Start has run.
type Runtime struct {
	mu    sync.RWMutex
	state runtimeState
	cfg   Config
	log   *slog.Logger

	files      *storage.FileStore
	rows       *storage.RowStore
	identities *identity.Service
	keys       *keyvault.Service
}

func NewRuntime(cfg Config, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{cfg: cfg, log: log}
}

// Start builds the platform key, the stores and the services. Safe to call
// once; a started runtime refuses a second Start.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateReady {
		return ErrAlreadyStarted
	}

	platformKey, err := identity.PlatformKey(r.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("platform key: %w", err)
	}
	files, err := storage.NewFileStore(r.cfg.DataDir)
	if err != nil {
		return err
	}
	rows, err := storage.NewRowStore(r.cfg.databasePath())
	if err != nil {
		return fmt.Errorf("open row store: %w", err)
	}
	identities, err := identity.NewService(files, platformKey, r.log)
	if err != nil {
		rows.Close()
		return err
	}
	lookups := ratelimiter.New(lookupRPS, lookupBurst, lookupIdleTTL)
	keys, err := keyvault.NewService(files, platformKey, lookups)
	if err != nil {
		rows.Close()
		return err
	}

	r.files = files
	r.rows = rows
	r.identities = identities
	r.keys = keys
	r.state = stateReady
	r.log.Info("runtime started", "data_dir", r.cfg.DataDir)
	return nil
}

func (r *Runtime) IdentityService() (*identity.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != stateReady {
		return nil, ErrNotReady
	}
	return r.identities, nil
}

func (r *Runtime) KeyService() (*keyvault.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != stateReady {
		return nil, ErrNotReady
	}
	return r.keys, nil
}

func (r *Runtime) Rows() (*storage.RowStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != stateReady {
		return nil, ErrNotReady
	}
	return r.rows, nil
}

func (r *Runtime) Files() (*storage.FileStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != stateReady {
		return nil, ErrNotReady
	}
	return r.files, nil
}

// EnsureVault creates the key vault from the current identity's master key.
// No-op when the vault already exists; fails when no identity is present.
func (r *Runtime) EnsureVault() error {
	r.mu.RLock()
	if r.state != stateReady {
		r.mu.RUnlock()
		return ErrNotReady
	}
	identities, keys := r.identities, r.keys
	r.mu.RUnlock()

	root, err := identities.Identity()
	if err != nil {
		return err
	}
	return keys.Initialize(root.MasterKey())
}

// Wipe deletes the identity subtree, taking the identity file and the key
// vault down together. Row-store contents stay; they carry their own keys.
func (r *Runtime) Wipe() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateReady {
		return ErrNotReady
	}
	if err := r.files.ClearDir(identityDir); err != nil {
		return fmt.Errorf("wipe identity data: %w", err)
	}
	r.log.Info("identity data wiped")
	return nil
}

// Close releases the row store and returns the runtime to its initial state.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateReady {
		return nil
	}
	err := r.rows.Close()
	r.files = nil
	r.rows = nil
	r.identities = nil
	r.keys = nil
	r.state = stateUninitialized
	return err
}
