package keyvault

import (
	"fmt"
	"sort"
	"time"
)

// KeyType selects the curve a derived key pair lives on.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeX25519    KeyType = "x25519"
	KeyTypeSecp256k1 KeyType = "secp256k1" // reserved, not yet derivable
)

// DerivedKeyEntry is one persisted derivation. Entries are immutable once
// added; the vault only ever grows.
type DerivedKeyEntry struct {
	PublicKey   string  `json:"public_key"`
	SecretKey   string  `json:"secret_key"`
	ComponentID string  `json:"component_id"`
	Index       uint64  `json:"index"`
	CreatedAt   int64   `json:"created_at"`
	KeyType     KeyType `json:"key_type"`
}

// KeyID is the vault map key: "{component_id}:{index}".
func (e DerivedKeyEntry) KeyID() string {
	return fmt.Sprintf("%s:%d", e.ComponentID, e.Index)
}

type Metadata struct {
	Version   uint32 `json:"version"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// KeyCocoon is the vault document: every key ever derived for every
// component, plus a copy of the master key they all descend from.
type KeyCocoon struct {
	MasterKey   []byte                     `json:"master_key"`
	DerivedKeys map[string]DerivedKeyEntry `json:"derived_keys"`
	Metadata    Metadata                   `json:"metadata"`
}

const cocoonVersion = 1

func NewKeyCocoon(masterKey [32]byte) *KeyCocoon {
	now := time.Now().Unix()
	return &KeyCocoon{
		MasterKey:   append([]byte(nil), masterKey[:]...),
		DerivedKeys: make(map[string]DerivedKeyEntry),
		Metadata: Metadata{
			Version:   cocoonVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (c *KeyCocoon) AddKey(entry DerivedKeyEntry) {
	c.DerivedKeys[entry.KeyID()] = entry
	c.Metadata.UpdatedAt = time.Now().Unix()
}

func (c *KeyCocoon) GetKey(componentID string, index uint64) (DerivedKeyEntry, bool) {
	entry, ok := c.DerivedKeys[fmt.Sprintf("%s:%d", componentID, index)]
	return entry, ok
}

// GetByPublicKey scans all entries. O(n), acceptable at expected vault sizes.
func (c *KeyCocoon) GetByPublicKey(publicKey string) (DerivedKeyEntry, bool) {
	for _, entry := range c.DerivedKeys {
		if entry.PublicKey == publicKey {
			return entry, true
		}
	}
	return DerivedKeyEntry{}, false
}

// ListKeys returns the component's entries ordered by index.
func (c *KeyCocoon) ListKeys(componentID string) []DerivedKeyEntry {
	var entries []DerivedKeyEntry
	for _, entry := range c.DerivedKeys {
		if entry.ComponentID == componentID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries
}

// HighestIndex reports the highest index used by the component; ok is false
// when the component has no keys yet.
func (c *KeyCocoon) HighestIndex(componentID string) (highest uint64, ok bool) {
	for _, entry := range c.DerivedKeys {
		if entry.ComponentID != componentID {
			continue
		}
		if !ok || entry.Index > highest {
			highest = entry.Index
		}
		ok = true
	}
	return highest, ok
}
