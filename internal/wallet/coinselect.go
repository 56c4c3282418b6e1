package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoCoins           = errors.New("no unspent outputs available")
)

// Coin is an unspent output available to fund a payment.
type Coin struct {
	ID    types.Hash
	Value types.Value
	Owner types.PublicKey
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []Coin
	Total  types.Value
	Change types.Value // Total - target.
}

// SelectCoins chooses coins covering target. It compares the smallest
// single coin that covers the target with largest-first accumulation and
// returns whichever leaves less change.
func SelectCoins(coins []Coin, target types.Value) (*CoinSelection, error) {
	if target.IsZero() {
		return nil, fmt.Errorf("target must be positive")
	}
	candidates := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if !c.Value.IsZero() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCoins
	}
	sort.Slice(candidates, func(i, j int) bool {
		if c := candidates[i].Value.Cmp(candidates[j].Value); c != 0 {
			return c < 0
		}
		return candidates[i].ID.Less(candidates[j].ID)
	})

	var single *CoinSelection
	for _, c := range candidates {
		if c.Value.Cmp(target) >= 0 {
			change, _ := c.Value.Sub(target)
			single = &CoinSelection{Inputs: []Coin{c}, Total: c.Value, Change: change}
			break
		}
	}

	var accum *CoinSelection
	var (
		selected []Coin
		total    types.Value
	)
	for i := len(candidates) - 1; i >= 0; i-- {
		var ok bool
		if total, ok = total.Add(candidates[i].Value); !ok {
			return nil, fmt.Errorf("coin total overflows")
		}
		selected = append(selected, candidates[i])
		if total.Cmp(target) >= 0 {
			change, _ := total.Sub(target)
			accum = &CoinSelection{Inputs: selected, Total: total, Change: change}
			break
		}
	}

	switch {
	case single != nil && accum != nil:
		if single.Change.Cmp(accum.Change) <= 0 {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, total, target)
	}
}
