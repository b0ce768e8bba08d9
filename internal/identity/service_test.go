package identity

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"osnova/go-core/internal/storage"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("file store failed: %v", err)
	}
	key, err := PlatformKey(dir)
	if err != nil {
		t.Fatalf("platform key failed: %v", err)
	}
	svc, err := NewService(store, key, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	return svc, dir
}

func TestStatusUninitialized(t *testing.T) {
	svc, _ := newTestService(t)
	status := svc.Status()
	if status.Initialized || status.Address != "" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestCreateIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	seedPhrase, address, err := svc.Create()
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := len(strings.Fields(seedPhrase)); got != 12 {
		t.Fatalf("expected 12-word seed phrase, got %d words", got)
	}
	if got := len(strings.Fields(address)); got != 4 {
		t.Fatalf("expected 4-word address, got %d words", got)
	}

	status := svc.Status()
	if !status.Initialized || status.Address != address {
		t.Fatalf("status does not reflect creation: %+v", status)
	}
}

func TestCreateFailsIfExists(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Create(); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, _, err := svc.Create(); !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestImportWithPhrase(t *testing.T) {
	svc, _ := newTestService(t)

	address, err := svc.ImportWithPhrase(testVectorSeed)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	status := svc.Status()
	if !status.Initialized || status.Address != address {
		t.Fatalf("status does not reflect import: %+v", status)
	}

	root, err := svc.Identity()
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	if root.SeedPhrase() != testVectorSeed {
		t.Fatal("persisted seed phrase mismatch")
	}
}

func TestImportFailsIfExists(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Create(); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.ImportWithPhrase(testVectorSeed); !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestImportRejectsInvalidPhrase(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ImportWithPhrase("not a mnemonic"); !errors.Is(err, ErrInvalidSeedPhrase) {
		t.Fatalf("expected ErrInvalidSeedPhrase, got %v", err)
	}
	if svc.Status().Initialized {
		t.Fatal("failed import must not leave an identity behind")
	}
}

func TestIdentityNotInitialized(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Identity(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestIdentitySurvivesRestart(t *testing.T) {
	svc, dir := newTestService(t)
	if _, err := svc.ImportWithPhrase(testVectorSeed); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store failed: %v", err)
	}
	key, err := PlatformKey(dir)
	if err != nil {
		t.Fatalf("platform key failed: %v", err)
	}
	svc2, err := NewService(store, key, nil)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	root, err := svc2.Identity()
	if err != nil {
		t.Fatalf("identity after restart failed: %v", err)
	}
	if root.SeedPhrase() != testVectorSeed {
		t.Fatal("seed phrase lost across restart")
	}
}

func TestStatusSoftFailsOnCorruptFile(t *testing.T) {
	svc, dir := newTestService(t)
	if _, _, err := svc.Create(); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	path := filepath.Join(dir, "identity", "root.enc")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("corrupt file failed: %v", err)
	}
	status := svc.Status()
	if status.Initialized {
		t.Fatal("unreadable identity must report uninitialized")
	}
}

func TestDeleteIdentityOnly(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Create(); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	removed, err := svc.Delete()
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if svc.Status().Initialized {
		t.Fatal("identity should be gone")
	}
	removed, err = svc.Delete()
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestPlatformKeyPassphraseStretch(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(storagePassphraseEnv, "correct horse battery staple")

	k1, err := PlatformKey(dir)
	if err != nil {
		t.Fatalf("platform key 1 failed: %v", err)
	}
	k2, err := PlatformKey(dir)
	if err != nil {
		t.Fatalf("platform key 2 failed: %v", err)
	}
	if string(k1) != string(k2) {
		t.Fatal("same passphrase and salt must yield the same key")
	}

	otherDir := t.TempDir()
	k3, err := PlatformKey(otherDir)
	if err != nil {
		t.Fatalf("platform key 3 failed: %v", err)
	}
	if string(k1) == string(k3) {
		t.Fatal("different salt must yield a different key")
	}

	t.Setenv(storagePassphraseEnv, "")
	dev, err := PlatformKey(dir)
	if err != nil {
		t.Fatalf("dev key failed: %v", err)
	}
	if string(dev) == string(k1) {
		t.Fatal("dev placeholder must differ from stretched key")
	}
}
