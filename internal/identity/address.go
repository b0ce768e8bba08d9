package identity

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/tyler-smith/go-bip39"
)

// FingerprintString is the stable, shareable identity id: a prefixed base58
// encoding of the fingerprint.
func (r *RootIdentity) FingerprintString() string {
	fp := r.Fingerprint()
	return "osn1" + base58.Encode(fp[:])
}

// Address renders a short human-facing label: the first 16 fingerprint bytes
// expanded into a BIP-39 mnemonic, first 4 words. At 44 bits this is a
// display convenience, not a collision-resistant identifier.
func (r *RootIdentity) Address() (string, error) {
	fp := r.Fingerprint()
	mnemonic, err := bip39.NewMnemonic(fp[:16])
	if err != nil {
		return "", fmt.Errorf("address derivation: %w", err)
	}
	words := strings.Fields(mnemonic)
	return strings.Join(words[:4], " "), nil
}
