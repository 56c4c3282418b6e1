// Package tx defines transaction types, their canonical encoding, output
// identifier derivation, and validation against the unspent-output set.
package tx

import (
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Transaction spends existing outputs and creates new ones.
// A Transaction is treated as immutable once built.
type Transaction struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// Input references an unspent output and proves authorization to spend it.
type Input struct {
	OutputID  types.Hash      `json:"output_id"`
	Signature types.Signature `json:"signature"`
}

// Output is a spendable unit of value locked to a single owner key.
type Output struct {
	Value types.Value     `json:"value"`
	Owner types.PublicKey `json:"owner"`
}

// Hash returns the BLAKE3 hash of the full canonical encoding, signatures
// included. It names the transaction in logs and events.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.Bytes())
}

// SigningHash returns the hash of SimpleBytes.
func (tx *Transaction) SigningHash() types.Hash {
	return crypto.Hash(tx.SimpleBytes())
}

// TotalOutputValue returns the sum of all output values.
// ok is false if the sum overflows.
func (tx *Transaction) TotalOutputValue() (total types.Value, ok bool) {
	for _, out := range tx.Outputs {
		total, ok = total.Add(out.Value)
		if !ok {
			return types.Value{}, false
		}
	}
	return total, true
}

// Clone returns a deep copy of the transaction.
func (tx *Transaction) Clone() *Transaction {
	c := &Transaction{
		Inputs:  make([]Input, len(tx.Inputs)),
		Outputs: make([]Output, len(tx.Outputs)),
	}
	copy(c.Inputs, tx.Inputs)
	copy(c.Outputs, tx.Outputs)
	return c
}
