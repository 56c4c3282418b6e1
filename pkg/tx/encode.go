package tx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Encoded sizes.
const (
	inputSize  = types.HashSize + types.SignatureSize
	outputSize = types.ValueSize + types.PublicKeySize
)

// Decoding errors.
var (
	ErrTruncated    = errors.New("encoded transaction truncated")
	ErrTrailingData = errors.New("trailing data after transaction")
)

// Bytes returns the canonical byte encoding of the transaction.
// Format: input_count(4) | [output_id(32) + signature(64)]... | output_count(4) | [value(16) + owner(32)]...
// All integers are little-endian.
func (tx *Transaction) Bytes() []byte {
	return tx.encode(false)
}

// SimpleBytes returns the canonical encoding with every input signature
// zeroed. This is the message each input signs, so no signature covers itself.
func (tx *Transaction) SimpleBytes() []byte {
	return tx.encode(true)
}

func (tx *Transaction) encode(blankSigs bool) []byte {
	buf := make([]byte, 0, 8+inputSize*len(tx.Inputs)+outputSize*len(tx.Outputs))

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.OutputID[:]...)
		if blankSigs {
			var zero types.Signature
			buf = append(buf, zero[:]...)
		} else {
			buf = append(buf, in.Signature[:]...)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = out.appendBytes(buf)
	}
	return buf
}

// Bytes returns the canonical encoding of an output: value(16) | owner(32).
func (o Output) Bytes() []byte {
	return o.appendBytes(make([]byte, 0, outputSize))
}

func (o Output) appendBytes(buf []byte) []byte {
	buf = o.Value.AppendBytes(buf)
	return append(buf, o.Owner[:]...)
}

// DecodeTransaction parses the canonical encoding produced by Bytes.
// Input and output counts above the protocol limits are rejected before
// any allocation.
func DecodeTransaction(b []byte) (*Transaction, error) {
	r := reader{buf: b}

	nIn, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("input count: %w", err)
	}
	if nIn > config.MaxTxInputs {
		return nil, fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, nIn, config.MaxTxInputs)
	}
	inputs := make([]Input, nIn)
	for i := range inputs {
		raw, err := r.next(inputSize)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		copy(inputs[i].OutputID[:], raw[:types.HashSize])
		copy(inputs[i].Signature[:], raw[types.HashSize:])
	}

	nOut, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("output count: %w", err)
	}
	if nOut > config.MaxTxOutputs {
		return nil, fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, nOut, config.MaxTxOutputs)
	}
	outputs := make([]Output, nOut)
	for i := range outputs {
		raw, err := r.next(outputSize)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		v, err := types.ValueFromBytes(raw[:types.ValueSize])
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		outputs[i].Value = v
		copy(outputs[i].Owner[:], raw[types.ValueSize:])
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, r.remaining())
	}
	return &Transaction{Inputs: inputs, Outputs: outputs}, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) next(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// OutputID derives the identifier of the output at index within tx:
// Hash(len(bytes)(4) | bytes | index(8)). The id commits to the full
// producing transaction and the output's position in it.
func OutputID(tx *Transaction, index uint64) types.Hash {
	return outputIDFromBytes(tx.Bytes(), index)
}

// OutputIDs derives the identifiers of every output of tx, in order.
func OutputIDs(tx *Transaction) []types.Hash {
	encoded := tx.Bytes()
	ids := make([]types.Hash, len(tx.Outputs))
	for i := range tx.Outputs {
		ids[i] = outputIDFromBytes(encoded, uint64(i))
	}
	return ids
}

func outputIDFromBytes(encoded []byte, index uint64) types.Hash {
	buf := make([]byte, 0, 4+len(encoded)+8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
	buf = append(buf, encoded...)
	buf = binary.LittleEndian.AppendUint64(buf, index)
	return crypto.Hash(buf)
}

// GenesisID derives the identifier of a genesis output. Genesis outputs have
// no producing transaction, so the id is the hash of the output itself.
func GenesisID(out Output) types.Hash {
	return crypto.Hash(out.Bytes())
}

// RewardID derives the identifier of a reward output minted in the given
// distribution epoch: Hash(output | epoch(8)).
func RewardID(out Output, epoch uint64) types.Hash {
	buf := out.appendBytes(make([]byte, 0, outputSize+8))
	buf = binary.LittleEndian.AppendUint64(buf, epoch)
	return crypto.Hash(buf)
}
