package ledger

import (
	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Issuance returns the new value minted into the reward pool at a
// distribution epoch.
type Issuance interface {
	Issuance(epoch uint64) types.Value
}

// NoIssuance mints nothing. Rewards then come only from transaction surplus.
type NoIssuance struct{}

// Issuance implements Issuance.
func (NoIssuance) Issuance(uint64) types.Value {
	return types.Value{}
}

// Halving mints Initial at epoch 0 and halves it every Interval epochs.
// An Interval of 0 mints Initial forever.
type Halving struct {
	Initial  types.Value
	Interval uint64
}

// Issuance implements Issuance.
func (h Halving) Issuance(epoch uint64) types.Value {
	if h.Interval == 0 {
		return h.Initial
	}
	halvings := epoch / h.Interval
	if halvings >= config.MaxHalvings {
		return types.Value{}
	}
	return h.Initial.Rsh(uint(halvings))
}

// IssuanceFromRules builds the issuance schedule described by genesis rules.
func IssuanceFromRules(r config.IssuanceRules) Issuance {
	if r.Initial.IsZero() {
		return NoIssuance{}
	}
	return Halving{Initial: r.Initial, Interval: r.HalvingInterval}
}
