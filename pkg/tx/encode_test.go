package tx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func sampleTx() *Transaction {
	return &Transaction{
		Inputs: []Input{
			{OutputID: types.Hash{0x01}, Signature: types.Signature{0x11}},
			{OutputID: types.Hash{0x02}, Signature: types.Signature{0x22}},
		},
		Outputs: []Output{
			{Value: val(60), Owner: types.PublicKey{0xbb}},
			{Value: val(40), Owner: types.PublicKey{0xcc}},
		},
	}
}

func TestBytes_Layout(t *testing.T) {
	tx := sampleTx()
	b := tx.Bytes()

	want := 4 + 2*inputSize + 4 + 2*outputSize
	if len(b) != want {
		t.Fatalf("len = %d, want %d", len(b), want)
	}
	if n := binary.LittleEndian.Uint32(b[:4]); n != 2 {
		t.Errorf("input count = %d, want 2", n)
	}
	if b[4] != 0x01 {
		t.Error("first input id should follow the count")
	}
	if b[4+types.HashSize] != 0x11 {
		t.Error("signature should follow the input id")
	}
	outStart := 4 + 2*inputSize
	if n := binary.LittleEndian.Uint32(b[outStart:]); n != 2 {
		t.Errorf("output count = %d, want 2", n)
	}
	if b[outStart+4] != 60 {
		t.Error("first output value should be little-endian after the count")
	}
}

func TestSimpleBytes_ZeroesSignatures(t *testing.T) {
	tx := sampleTx()
	simple := tx.SimpleBytes()

	unsigned := tx.Clone()
	for i := range unsigned.Inputs {
		unsigned.Inputs[i].Signature = types.Signature{}
	}
	if !bytes.Equal(simple, unsigned.Bytes()) {
		t.Error("SimpleBytes should equal Bytes with zero signatures")
	}
	if bytes.Equal(simple, tx.Bytes()) {
		t.Error("SimpleBytes should differ from Bytes when signatures are set")
	}
}

func TestDecodeTransaction_Roundtrip(t *testing.T) {
	tx := sampleTx()
	decoded, err := DecodeTransaction(tx.Bytes())
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), tx.Bytes()) {
		t.Error("decoded transaction re-encodes differently")
	}
}

func TestDecodeTransaction_Errors(t *testing.T) {
	good := sampleTx().Bytes()

	tooManyIn := binary.LittleEndian.AppendUint32(nil, config.MaxTxInputs+1)
	tooManyOut := binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(nil, 0), config.MaxTxOutputs+1)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short count", good[:2], ErrTruncated},
		{"truncated input", good[:4+inputSize-1], ErrTruncated},
		{"truncated output", good[:len(good)-1], ErrTruncated},
		{"trailing", append(append([]byte{}, good...), 0x00), ErrTrailingData},
		{"too many inputs", tooManyIn, ErrTooManyInputs},
		{"too many outputs", tooManyOut, ErrTooManyOutputs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTransaction(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOutputID_DependsOnIndexAndContent(t *testing.T) {
	tx := &Transaction{
		Inputs: []Input{{OutputID: types.Hash{0x01}}},
		Outputs: []Output{
			{Value: val(5), Owner: types.PublicKey{0xaa}},
			{Value: val(5), Owner: types.PublicKey{0xab}},
		},
	}
	if OutputID(tx, 0) == OutputID(tx, 1) {
		t.Error("outputs at different indexes must have different ids")
	}

	other := tx.Clone()
	other.Inputs[0].OutputID = types.Hash{0x02}
	if OutputID(tx, 0) == OutputID(other, 0) {
		t.Error("different transactions must yield different ids at the same index")
	}

	ids := OutputIDs(tx)
	for i := range tx.Outputs {
		if ids[i] != OutputID(tx, uint64(i)) {
			t.Errorf("OutputIDs[%d] disagrees with OutputID", i)
		}
	}
}

func TestOutputID_RandomizedNoCollisions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := make(map[types.Hash]string)

	for n := 0; n < 500; n++ {
		tx := &Transaction{}
		for i := 0; i < 1+rng.Intn(3); i++ {
			var in Input
			rng.Read(in.OutputID[:])
			rng.Read(in.Signature[:])
			tx.Inputs = append(tx.Inputs, in)
		}
		for i := 0; i < 1+rng.Intn(3); i++ {
			var out Output
			out.Value = val(rng.Uint64())
			rng.Read(out.Owner[:])
			tx.Outputs = append(tx.Outputs, out)
		}
		encoded := string(tx.Bytes())
		for i, id := range OutputIDs(tx) {
			key := encoded + string(rune('0'+i))
			if prev, dup := seen[id]; dup && prev != key {
				t.Fatalf("collision on id %s", id)
			}
			seen[id] = key
		}
	}
}

func TestGenesisAndRewardIDs(t *testing.T) {
	out := Output{Value: val(3), Owner: types.PublicKey{0xaa}}

	if GenesisID(out) != GenesisID(out) {
		t.Error("GenesisID should be deterministic")
	}
	if RewardID(out, 0) == RewardID(out, 1) {
		t.Error("same output in different epochs must have different ids")
	}
	if RewardID(out, 0) == GenesisID(out) {
		t.Error("reward ids should not coincide with genesis ids")
	}
}
