package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// mockUTXOProvider is a map-backed UTXOProvider.
type mockUTXOProvider struct {
	utxos map[types.Hash]Output
	err   error
}

func newMockProvider() *mockUTXOProvider {
	return &mockUTXOProvider{utxos: make(map[types.Hash]Output)}
}

func (m *mockUTXOProvider) add(id types.Hash, value uint64, owner types.PublicKey) {
	m.utxos[id] = Output{Value: val(value), Owner: owner}
}

func (m *mockUTXOProvider) GetUTXO(id types.Hash) (Output, bool, error) {
	if m.err != nil {
		return Output{}, false, m.err
	}
	out, ok := m.utxos[id]
	return out, ok, nil
}

func (m *mockUTXOProvider) HasUTXO(id types.Hash) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.utxos[id]
	return ok, nil
}

// fixture is genesis [{100, A}] with id h0.
type fixture struct {
	provider *mockUTXOProvider
	keyA     *crypto.PrivateKey
	keyB     *crypto.PrivateKey
	h0       types.Hash
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keyA, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyB, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	p := newMockProvider()
	h0 := GenesisID(Output{Value: val(100), Owner: keyA.Owner()})
	p.add(h0, 100, keyA.Owner())
	return &fixture{provider: p, keyA: keyA, keyB: keyB, h0: h0}
}

func (f *fixture) spend(t *testing.T, outputs ...Output) *Transaction {
	t.Helper()
	b := NewBuilder().AddInput(f.h0)
	for _, out := range outputs {
		b.AddOutput(out.Value, out.Owner)
	}
	if err := b.Sign(f.keyA); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return b.Build()
}

func TestValidate_AcceptsWithReward(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(60), Owner: f.keyB.Owner()})

	adm, err := Validate(tx, f.provider)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if adm.Status() != Accepted {
		t.Fatalf("status = %s, want accepted", adm.Status())
	}
	if adm.Reward.Cmp(val(40)) != 0 {
		t.Errorf("reward = %s, want 40", adm.Reward)
	}
	if len(adm.Provides) != 1 || adm.Provides[0] != OutputID(tx, 0) {
		t.Error("Provides should list the derived output id")
	}
}

func TestValidate_ExactSpendZeroReward(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(100), Owner: f.keyB.Owner()})

	adm, err := Validate(tx, f.provider)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !adm.Reward.IsZero() {
		t.Errorf("reward = %s, want 0", adm.Reward)
	}
}

func TestValidate_OutputExceedsInput(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t,
		Output{Value: val(100), Owner: f.keyB.Owner()},
		Output{Value: val(50), Owner: f.keyA.Owner()},
	)

	_, err := Validate(tx, f.provider)
	if !errors.Is(err, ErrInsufficientInput) {
		t.Fatalf("expected ErrInsufficientInput, got: %v", err)
	}
	if !IsRejection(err) {
		t.Error("insufficient input should be a rejection")
	}
}

func TestValidate_Structural(t *testing.T) {
	owner := types.PublicKey{0xaa}
	tooManyIn := &Transaction{Outputs: []Output{{Value: val(1), Owner: owner}}}
	for i := 0; i <= config.MaxTxInputs; i++ {
		var id types.Hash
		id[0], id[1] = byte(i), byte(i>>8)
		tooManyIn.Inputs = append(tooManyIn.Inputs, Input{OutputID: id})
	}
	tooManyOut := &Transaction{Inputs: []Input{{OutputID: types.Hash{0x01}}}}
	for i := 0; i <= config.MaxTxOutputs; i++ {
		tooManyOut.Outputs = append(tooManyOut.Outputs, Output{Value: val(uint64(i + 1)), Owner: owner})
	}

	tests := []struct {
		name string
		tx   *Transaction
		want error
	}{
		{
			name: "no inputs",
			tx:   &Transaction{Outputs: []Output{{Value: val(1), Owner: owner}}},
			want: ErrNoInputs,
		},
		{
			name: "no outputs",
			tx:   &Transaction{Inputs: []Input{{OutputID: types.Hash{0x01}}}},
			want: ErrNoOutputs,
		},
		{
			name: "duplicate input",
			tx: &Transaction{
				Inputs:  []Input{{OutputID: types.Hash{0x01}}, {OutputID: types.Hash{0x01}}},
				Outputs: []Output{{Value: val(1), Owner: owner}},
			},
			want: ErrDuplicateInput,
		},
		{
			name: "duplicate output",
			tx: &Transaction{
				Inputs:  []Input{{OutputID: types.Hash{0x01}}},
				Outputs: []Output{{Value: val(1), Owner: owner}, {Value: val(1), Owner: owner}},
			},
			want: ErrDuplicateOutput,
		},
		{name: "too many inputs", tx: tooManyIn, want: ErrTooManyInputs},
		{name: "too many outputs", tx: tooManyOut, want: ErrTooManyOutputs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.tx, newMockProvider())
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_SameValueDifferentOwnerAllowed(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t,
		Output{Value: val(10), Owner: f.keyA.Owner()},
		Output{Value: val(10), Owner: f.keyB.Owner()},
	)
	if _, err := Validate(tx, f.provider); err != nil {
		t.Errorf("distinct owners should not be duplicates: %v", err)
	}
}

func TestValidate_WrongSigner(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder().AddInput(f.h0).AddOutput(val(60), f.keyB.Owner())
	if err := b.Sign(f.keyB); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, err := Validate(b.Build(), f.provider)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestValidate_TamperedOutput(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(60), Owner: f.keyB.Owner()})
	tx.Outputs[0].Value = val(59)

	_, err := Validate(tx, f.provider)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestValidate_ZeroOutput(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(0), Owner: f.keyB.Owner()})

	_, err := Validate(tx, f.provider)
	if !errors.Is(err, ErrZeroOutput) {
		t.Errorf("expected ErrZeroOutput, got: %v", err)
	}
}

func TestValidate_OutputExists(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(60), Owner: f.keyB.Owner()})
	f.provider.add(OutputID(tx, 0), 1, f.keyB.Owner())

	_, err := Validate(tx, f.provider)
	if !errors.Is(err, ErrOutputExists) {
		t.Errorf("expected ErrOutputExists, got: %v", err)
	}
}

func TestValidate_InputOverflow(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p := newMockProvider()
	id1, id2 := types.Hash{0x01}, types.Hash{0x02}
	p.utxos[id1] = Output{Value: types.MaxValue(), Owner: key.Owner()}
	p.utxos[id2] = Output{Value: val(1), Owner: key.Owner()}

	b := NewBuilder().AddInput(id1).AddInput(id2).AddOutput(val(1), key.Owner())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	_, err := Validate(b.Build(), p)
	if !errors.Is(err, ErrInputOverflow) {
		t.Errorf("expected ErrInputOverflow, got: %v", err)
	}
}

func TestValidate_OutputOverflow(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t,
		Output{Value: types.MaxValue(), Owner: f.keyB.Owner()},
		Output{Value: val(1), Owner: f.keyB.Owner()},
	)
	_, err := Validate(tx, f.provider)
	if !errors.Is(err, ErrOutputOverflow) {
		t.Errorf("expected ErrOutputOverflow, got: %v", err)
	}
}

func TestValidate_MissingInputIsPending(t *testing.T) {
	f := newFixture(t)
	unknown := types.Hash{0xde, 0xad}

	b := NewBuilder().AddInput(f.h0).AddInput(unknown).AddOutput(val(500), f.keyB.Owner())
	if err := b.Sign(f.keyA); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	adm, err := Validate(b.Build(), f.provider)
	if err != nil {
		t.Fatalf("missing input should not reject: %v", err)
	}
	if adm.Status() != Pending {
		t.Fatalf("status = %s, want pending", adm.Status())
	}
	if len(adm.Missing) != 1 || adm.Missing[0] != unknown {
		t.Errorf("missing = %v, want [%s]", adm.Missing, unknown)
	}
	if !adm.Reward.IsZero() {
		t.Error("pending admission should carry no reward")
	}
}

func TestValidate_PendingStillChecksPresentInputs(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder().AddInput(f.h0).AddInput(types.Hash{0xde}).AddOutput(val(1), f.keyB.Owner())
	if err := b.Sign(f.keyB); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	_, err := Validate(b.Build(), f.provider)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestValidate_RejectionIsDeterministic(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(150), Owner: f.keyB.Owner()})

	_, err1 := Validate(tx, f.provider)
	_, err2 := Validate(tx, f.provider)
	if err1 == nil || err2 == nil {
		t.Fatal("expected rejection")
	}
	if err1.Error() != err2.Error() {
		t.Errorf("rejections differ: %q vs %q", err1, err2)
	}
}

func TestValidate_ProviderError(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, Output{Value: val(60), Owner: f.keyB.Owner()})
	storageErr := errors.New("disk on fire")
	f.provider.err = storageErr

	_, err := Validate(tx, f.provider)
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected wrapped storage error, got: %v", err)
	}
	if IsRejection(err) {
		t.Error("storage failures are not rejections")
	}
}

func TestStatus_String(t *testing.T) {
	if Accepted.String() != "accepted" || Pending.String() != "pending" {
		t.Error("unexpected status names")
	}
}
