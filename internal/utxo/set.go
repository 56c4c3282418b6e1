// Package utxo manages the unspent-output set.
package utxo

import (
	"errors"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Set errors. Both indicate a caller that skipped validation.
var (
	ErrExists   = errors.New("utxo already exists")
	ErrNotFound = errors.New("utxo not found")
)

// Origin records how an output entered the set.
type Origin string

const (
	OriginGenesis     Origin = "genesis"
	OriginTransaction Origin = "transaction"
	OriginReward      Origin = "reward"
)

// UTXO represents an unspent output together with its identifier.
type UTXO struct {
	ID     types.Hash      `json:"id"`
	Value  types.Value     `json:"value"`
	Owner  types.PublicKey `json:"owner"`
	Origin Origin          `json:"origin"`
	// Epoch is the distribution epoch of a reward output.
	Epoch uint64 `json:"epoch,omitempty"`
}

// Output returns the spendable output the UTXO holds.
func (u *UTXO) Output() tx.Output {
	return tx.Output{Value: u.Value, Owner: u.Owner}
}

// Set is the interface for unspent-output storage.
// Insert never overwrites: it fails with ErrExists. Remove fails with
// ErrNotFound for an absent id.
type Set interface {
	Get(id types.Hash) (*UTXO, error)
	Has(id types.Hash) (bool, error)
	Insert(u *UTXO) error
	Remove(id types.Hash) error
}

// Provider adapts a Set for transaction validation.
type Provider struct {
	Set Set
}

// GetUTXO implements tx.UTXOProvider.
func (p Provider) GetUTXO(id types.Hash) (tx.Output, bool, error) {
	u, err := p.Set.Get(id)
	if errors.Is(err, ErrNotFound) {
		return tx.Output{}, false, nil
	}
	if err != nil {
		return tx.Output{}, false, err
	}
	return u.Output(), true, nil
}

// HasUTXO implements tx.UTXOProvider.
func (p Provider) HasUTXO(id types.Hash) (bool, error) {
	return p.Set.Has(id)
}
