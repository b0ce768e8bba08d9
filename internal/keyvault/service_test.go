package keyvault

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"osnova/go-core/internal/identity"
	"osnova/go-core/internal/platform/ratelimiter"
	"osnova/go-core/internal/storage"
)

func newTestService(t *testing.T, dir string, lookups *ratelimiter.MapLimiter) *Service {
	t.Helper()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	cocoonKey := bytes.Repeat([]byte{0x0c}, 32)
	svc, err := NewService(store, cocoonKey, lookups)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestServiceDeriveBeforeInitialize(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil)
	if _, err := svc.Derive("com.test.wallet", KeyTypeEd25519); !errors.Is(err, ErrVaultMissing) {
		t.Fatalf("expected ErrVaultMissing, got %v", err)
	}
}

func TestServiceDeriveSequence(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil)
	if err := svc.Initialize([32]byte{7}); err != nil {
		t.Fatal(err)
	}

	for want := uint64(0); want < 3; want++ {
		res, err := svc.Derive("com.test.wallet", KeyTypeEd25519)
		if err != nil {
			t.Fatal(err)
		}
		if res.Index != want {
			t.Fatalf("expected index %d, got %d", want, res.Index)
		}
		if res.PublicKey == "" || res.CreatedAt == 0 {
			t.Fatalf("incomplete result: %+v", res)
		}
	}

	// A second component starts its own index sequence at zero.
	other, err := svc.Derive("com.other.app", KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if other.Index != 0 {
		t.Fatalf("expected index 0 for fresh component, got %d", other.Index)
	}
}

func TestServiceInitializeIdempotent(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, dir, nil)
	if err := svc.Initialize([32]byte{7}); err != nil {
		t.Fatal(err)
	}
	first, err := svc.Derive("com.test.wallet", KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}

	// Re-initializing with a different master key must not rotate the vault.
	if err := svc.Initialize([32]byte{9}); err != nil {
		t.Fatal(err)
	}
	again, err := svc.DeriveAtIndex("com.test.wallet", 0, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if again.PublicKey != first.PublicKey {
		t.Fatal("master key rotated by re-initialize")
	}
}

func TestServiceDeriveAtIndexIdempotent(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil)
	if err := svc.Initialize([32]byte{7}); err != nil {
		t.Fatal(err)
	}

	first, err := svc.DeriveAtIndex("com.test.wallet", 3, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.DeriveAtIndex("com.test.wallet", 3, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("repeat derivation differs: %+v vs %+v", first, second)
	}

	// Even a different requested type returns the existing entry untouched.
	third, err := svc.DeriveAtIndex("com.test.wallet", 3, KeyTypeX25519)
	if err != nil {
		t.Fatal(err)
	}
	if third.PublicKey != first.PublicKey {
		t.Fatal("existing slot must be returned verbatim")
	}
}

func TestServiceStableAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	masterKey := [32]byte{}
	copy(masterKey[:], bytes.Repeat([]byte{0x42}, 32))

	svc := newTestService(t, dir, nil)
	if err := svc.Initialize(masterKey); err != nil {
		t.Fatal(err)
	}
	before, err := svc.DeriveAtIndex("com.test.wallet", 3, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}

	// Fresh service over the same vault file.
	reopened := newTestService(t, dir, nil)
	after, err := reopened.DeriveAtIndex("com.test.wallet", 3, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if after.PublicKey != before.PublicKey {
		t.Fatal("public key changed across restart")
	}

	// The stored key must match an independent derivation from the master key.
	seed, err := DeriveSymmetricKey(masterKey[:], "com.test.wallet", 3)
	if err != nil {
		t.Fatal(err)
	}
	pair, err := GenerateKeyPair(seed, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if base64.StdEncoding.EncodeToString(pair.PublicKey) != before.PublicKey {
		t.Fatal("vault entry does not match direct derivation")
	}
}

func TestServiceKnownSeedStableKey(t *testing.T) {
	const phrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	dir := t.TempDir()

	root, err := identity.FromSeedPhrase(phrase)
	if err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, dir, nil)
	if err := svc.Initialize(root.MasterKey()); err != nil {
		t.Fatal(err)
	}
	first, err := svc.DeriveAtIndex("com.test.wallet", 3, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}

	// New process: re-import the phrase, reopen the vault file.
	reimported, err := identity.FromSeedPhrase(phrase)
	if err != nil {
		t.Fatal(err)
	}
	if reimported.MasterKey() != root.MasterKey() {
		t.Fatal("master key not stable for the known seed")
	}
	reopened := newTestService(t, dir, nil)
	if err := reopened.Initialize(reimported.MasterKey()); err != nil {
		t.Fatal(err)
	}
	again, err := reopened.DeriveAtIndex("com.test.wallet", 3, KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if again.PublicKey != first.PublicKey {
		t.Fatal("ed25519 public key not stable across restarts")
	}
}

func TestServiceGetByPublicKey(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil)
	if err := svc.Initialize([32]byte{7}); err != nil {
		t.Fatal(err)
	}
	derived, err := svc.Derive("com.test.wallet", KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.GetByPublicKey(derived.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if res.ComponentID != "com.test.wallet" || res.Index != 0 {
		t.Fatalf("wrong owner: %+v", res)
	}

	// Secret must pair with the public key.
	seed, err := base64.StdEncoding.DecodeString(res.SecretKey)
	if err != nil {
		t.Fatal(err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	if base64.StdEncoding.EncodeToString(pub) != derived.PublicKey {
		t.Fatal("secret does not match public key")
	}

	if _, err := svc.GetByPublicKey("bm90LWEta2V5"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestServiceGetByPublicKeyThrottled(t *testing.T) {
	lookups := ratelimiter.New(0.001, 1, time.Minute)
	svc := newTestService(t, t.TempDir(), lookups)
	if err := svc.Initialize([32]byte{7}); err != nil {
		t.Fatal(err)
	}
	derived, err := svc.Derive("com.test.wallet", KeyTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetByPublicKey(derived.PublicKey); err != nil {
		t.Fatalf("first lookup must pass: %v", err)
	}
	if _, err := svc.GetByPublicKey(derived.PublicKey); !errors.Is(err, ErrLookupThrottled) {
		t.Fatalf("expected ErrLookupThrottled, got %v", err)
	}
}

func TestServiceListForComponent(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil)
	if err := svc.Initialize([32]byte{7}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Derive("com.test.wallet", KeyTypeEd25519); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Derive("com.test.wallet", KeyTypeX25519); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Derive("com.other.app", KeyTypeEd25519); err != nil {
		t.Fatal(err)
	}

	infos, err := svc.ListForComponent("com.test.wallet")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(infos))
	}
	if infos[0].Index != 0 || infos[0].KeyType != KeyTypeEd25519 {
		t.Fatalf("unexpected first entry: %+v", infos[0])
	}
	if infos[1].Index != 1 || infos[1].KeyType != KeyTypeX25519 {
		t.Fatalf("unexpected second entry: %+v", infos[1])
	}

	empty, err := svc.ListForComponent("com.unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty listing, got %v", empty)
	}
}
