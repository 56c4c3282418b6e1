package tx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// FuzzTxUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Transaction struct.
func FuzzTxUnmarshal(f *testing.F) {
	f.Add([]byte(`{"inputs":[{"output_id":"0000000000000000000000000000000000000000000000000000000000000000"}],"outputs":[{"value":"1000","owner":"0000000000000000000000000000000000000000000000000000000000000000"}]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"inputs":null,"outputs":null}`))
	f.Add([]byte(`{"inputs":[{"output_id":"","signature":""}],"outputs":[{"value":0}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var tx Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			return
		}
		// If unmarshal succeeded, these must not panic.
		tx.Hash()
		tx.SimpleBytes()
		Validate(&tx, newMockProvider())
	})
}

// FuzzDecodeTransaction checks that decoding never panics and that anything
// it accepts re-encodes to the same bytes.
func FuzzDecodeTransaction(f *testing.F) {
	f.Add(sampleTx().Bytes())
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})
	f.Add((&Transaction{Outputs: []Output{{Value: types.MaxValue()}}}).Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		tx, err := DecodeTransaction(data)
		if err != nil {
			return
		}
		if !bytes.Equal(tx.Bytes(), data) {
			t.Fatalf("re-encoding differs from input")
		}
		OutputIDs(tx)
	})
}
