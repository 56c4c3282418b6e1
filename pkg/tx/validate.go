package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Rejection errors. A transaction rejected with one of these is rejected
// again for the same unspent-output set.
var (
	ErrNoInputs          = errors.New("transaction has no inputs")
	ErrNoOutputs         = errors.New("transaction has no outputs")
	ErrTooManyInputs     = errors.New("too many inputs")
	ErrTooManyOutputs    = errors.New("too many outputs")
	ErrDuplicateInput    = errors.New("duplicate input")
	ErrDuplicateOutput   = errors.New("duplicate output")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInputOverflow     = errors.New("input values overflow")
	ErrZeroOutput        = errors.New("output value is zero")
	ErrOutputExists      = errors.New("output id already exists")
	ErrOutputOverflow    = errors.New("output values overflow")
	ErrInsufficientInput = errors.New("output value exceeds input value")
)

var rejections = []error{
	ErrNoInputs, ErrNoOutputs, ErrTooManyInputs, ErrTooManyOutputs,
	ErrDuplicateInput, ErrDuplicateOutput, ErrInvalidSignature,
	ErrInputOverflow, ErrZeroOutput, ErrOutputExists, ErrOutputOverflow,
	ErrInsufficientInput, ErrTruncated, ErrTrailingData,
}

// IsRejection reports whether err is a deterministic validation rejection,
// as opposed to a storage failure or other operational error.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// UTXOProvider provides read-only access to the unspent-output set.
// A lookup of an absent id is not an error: found is false.
type UTXOProvider interface {
	GetUTXO(id types.Hash) (out Output, found bool, err error)
	HasUTXO(id types.Hash) (bool, error)
}

// Status is the outcome of a successful validation.
type Status int

const (
	// Accepted means every input is present and the transaction may be applied.
	Accepted Status = iota
	// Pending means some inputs are not yet in the set. Nothing may be applied.
	Pending
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Admission is the result of validating a transaction.
type Admission struct {
	// Reward is total input minus total output. Zero while pending.
	Reward types.Value
	// Missing lists referenced output ids not found in the set, in input order.
	Missing []types.Hash
	// Provides lists the ids the transaction's outputs will be stored under.
	Provides []types.Hash
}

// Status reports whether the admission is Accepted or Pending.
func (a *Admission) Status() Status {
	if len(a.Missing) > 0 {
		return Pending
	}
	return Accepted
}

// Validate checks tx against the unspent-output set. It returns an Admission
// when the transaction is either accepted or pending on missing inputs, and a
// rejection error otherwise. Errors from the provider are wrapped and are not
// rejections.
func Validate(tx *Transaction, provider UTXOProvider) (*Admission, error) {
	if err := tx.validateStructure(); err != nil {
		return nil, err
	}

	adm := &Admission{}
	message := tx.SimpleBytes()

	var totalInput types.Value
	for i, in := range tx.Inputs {
		out, found, err := provider.GetUTXO(in.OutputID)
		if err != nil {
			return nil, fmt.Errorf("input %d (%s): lookup: %w", i, in.OutputID, err)
		}
		if !found {
			adm.Missing = append(adm.Missing, in.OutputID)
			continue
		}
		if !crypto.Verify(in.Signature, message, out.Owner) {
			return nil, fmt.Errorf("input %d (%s): %w", i, in.OutputID, ErrInvalidSignature)
		}
		var ok bool
		if totalInput, ok = totalInput.Add(out.Value); !ok {
			return nil, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
	}

	adm.Provides = OutputIDs(tx)
	var totalOutput types.Value
	for i, out := range tx.Outputs {
		if out.Value.IsZero() {
			return nil, fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		exists, err := provider.HasUTXO(adm.Provides[i])
		if err != nil {
			return nil, fmt.Errorf("output %d (%s): lookup: %w", i, adm.Provides[i], err)
		}
		if exists {
			return nil, fmt.Errorf("output %d (%s): %w", i, adm.Provides[i], ErrOutputExists)
		}
		var ok bool
		if totalOutput, ok = totalOutput.Add(out.Value); !ok {
			return nil, fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
	}

	if len(adm.Missing) > 0 {
		return adm, nil
	}

	reward, ok := totalInput.Sub(totalOutput)
	if !ok {
		return nil, fmt.Errorf("%w: input %s, output %s", ErrInsufficientInput, totalInput, totalOutput)
	}
	adm.Reward = reward
	return adm, nil
}

// validateStructure checks the rules that need no access to the set.
func (tx *Transaction) validateStructure() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), config.MaxTxInputs)
	}
	if len(tx.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), config.MaxTxOutputs)
	}

	seenInputs := make(map[types.Hash]int, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if j, dup := seenInputs[in.OutputID]; dup {
			return fmt.Errorf("input %d repeats input %d (%s): %w", i, j, in.OutputID, ErrDuplicateInput)
		}
		seenInputs[in.OutputID] = i
	}

	// Outputs are compared by their canonical encoding, i.e. value and owner.
	seenOutputs := make(map[[outputSize]byte]int, len(tx.Outputs))
	for i, out := range tx.Outputs {
		var key [outputSize]byte
		copy(key[:], out.Bytes())
		if j, dup := seenOutputs[key]; dup {
			return fmt.Errorf("output %d repeats output %d: %w", i, j, ErrDuplicateOutput)
		}
		seenOutputs[key] = i
	}
	return nil
}
