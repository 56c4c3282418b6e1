package tx

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: &Transaction{}}
}

// AddInput adds an unsigned input spending the output with the given id.
func (b *Builder) AddInput(id types.Hash) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{OutputID: id})
	return b
}

// AddOutput adds an output paying value to owner.
func (b *Builder) AddOutput(value types.Value, owner types.PublicKey) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Value: value, Owner: owner})
	return b
}

// Sign signs every input with one key. All spent outputs must belong to
// signer's owner for the result to validate.
func (b *Builder) Sign(signer crypto.Signer) error {
	return SignInputs(b.tx, func(types.Hash) (crypto.Signer, error) {
		return signer, nil
	})
}

// SignMulti signs each input with the key owning the output it spends.
// owners maps each spent output id to its owner; signers maps owners to keys.
func (b *Builder) SignMulti(signers map[types.PublicKey]crypto.Signer, owners map[types.Hash]types.PublicKey) error {
	return SignInputs(b.tx, func(id types.Hash) (crypto.Signer, error) {
		owner, ok := owners[id]
		if !ok {
			return nil, fmt.Errorf("no owner known for output %s", id)
		}
		signer, ok := signers[owner]
		if !ok {
			return nil, fmt.Errorf("no signer for owner %s", owner)
		}
		return signer, nil
	})
}

// Build returns the constructed transaction.
// It is not validated; call Validate against a set.
func (b *Builder) Build() *Transaction {
	return b.tx
}

// SignInputs fills every input signature of tx. signerFor returns the key
// for the output an input spends. Inputs share one message, so each distinct
// signer signs once.
func SignInputs(tx *Transaction, signerFor func(id types.Hash) (crypto.Signer, error)) error {
	message := tx.SimpleBytes()
	cache := make(map[types.PublicKey]types.Signature)

	for i := range tx.Inputs {
		signer, err := signerFor(tx.Inputs[i].OutputID)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		owner := signer.Owner()
		sig, cached := cache[owner]
		if !cached {
			sig, err = signer.SignMessage(message)
			if err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			cache[owner] = sig
		}
		tx.Inputs[i].Signature = sig
	}
	return nil
}
