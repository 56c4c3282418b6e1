package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// Owner keys live at m/44'/8888'/account'/0/index.
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44
	CoinType     = bip32.FirstHardenedChild + 8888
	ChainOwner   = 0
)

// HDKey is a BIP-32 extended private key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates the master key for a seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives a key along a sequence of child indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k.key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return &HDKey{key: current}, nil
}

// DeriveOwner derives the owner key at the given account and index.
func (k *HDKey) DeriveOwner(account, index uint32) (*HDKey, error) {
	return k.DerivePath(PurposeBIP44, CoinType, bip32.FirstHardenedChild+account, ChainOwner, index)
}

// PrivateKeyBytes returns the raw 32-byte secret as derived, before any
// even-Y normalization.
func (k *HDKey) PrivateKeyBytes() []byte {
	raw := k.key.Key
	// bip32 pads private keys to 33 bytes with a leading zero.
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// Signer returns the signing key for this node.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	if !k.key.IsPrivate {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromBytes(k.PrivateKeyBytes())
}

// OwnerKeys derives count signing keys at m/44'/8888'/account'/0/i and
// indexes them by owner.
func OwnerKeys(seed []byte, account, count uint32) (map[types.PublicKey]*crypto.PrivateKey, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	keys := make(map[types.PublicKey]*crypto.PrivateKey, count)
	for i := uint32(0); i < count; i++ {
		node, err := master.DeriveOwner(account, i)
		if err != nil {
			return nil, err
		}
		signer, err := node.Signer()
		if err != nil {
			return nil, fmt.Errorf("owner %d: %w", i, err)
		}
		keys[signer.Owner()] = signer
	}
	return keys, nil
}
