package utxo

import (
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the store.
// Each UTXO is hashed deterministically, the hashes are sorted, and
// a merkle tree is built from them. Returns a zero hash for an empty set.
func Commitment(store *Store) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(u *UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	// Sort so the root depends only on set contents.
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Less(hashes[j])
	})

	return crypto.ComputeMerkleRoot(hashes), nil
}

// hashUTXO produces a deterministic BLAKE3 hash of a UTXO.
// Format: id(32) | value(16) | owner(32)
func hashUTXO(u *UTXO) types.Hash {
	buf := make([]byte, 0, types.HashSize+types.ValueSize+types.PublicKeySize)
	buf = append(buf, u.ID[:]...)
	buf = u.Value.AppendBytes(buf)
	buf = append(buf, u.Owner[:]...)
	return crypto.Hash(buf)
}
