package ledger

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Validate checks t against the current UTXO set without changing it.
// A rejection is reported as an error for which tx.IsRejection is true;
// any other error is a storage failure.
func (l *Ledger) Validate(t *tx.Transaction) (*tx.Admission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.state.Initialized {
		return nil, ErrNotInitialized
	}
	return tx.Validate(t, utxo.Provider{Set: l.utxos})
}

// Apply commits an accepted transaction: its inputs are removed, its
// outputs inserted and its reward added to the pool, all in one batch.
// t is validated again against the current set, signatures included, and
// the result must match adm. Otherwise ErrStaleAdmission is returned and
// nothing changes.
func (l *Ledger) Apply(t *tx.Transaction, adm *tx.Admission) error {
	l.mu.Lock()
	ev, err := l.apply(t, adm, true)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.emit([]Event{ev})
	return nil
}

// Submit validates t and applies it if accepted, holding the lock across
// both steps. A pending admission is returned without changing the ledger.
func (l *Ledger) Submit(t *tx.Transaction) (*tx.Admission, error) {
	l.mu.Lock()
	if !l.state.Initialized {
		l.mu.Unlock()
		return nil, ErrNotInitialized
	}
	adm, err := tx.Validate(t, utxo.Provider{Set: l.utxos})
	if err != nil || adm.Status() != tx.Accepted {
		l.mu.Unlock()
		return adm, err
	}
	ev, err := l.apply(t, adm, false)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	l.emit([]Event{ev})
	return adm, nil
}

// apply must be called with l.mu held for writing. revalidate is false only
// when adm was produced by tx.Validate under the same lock.
func (l *Ledger) apply(t *tx.Transaction, adm *tx.Admission, revalidate bool) (Event, error) {
	if !l.state.Initialized {
		return Event{}, ErrNotInitialized
	}
	if adm == nil || adm.Status() != tx.Accepted {
		return Event{}, ErrNotAccepted
	}
	pool, ok := l.state.RewardTotal.Add(adm.Reward)
	if !ok {
		return Event{}, ErrRewardOverflow
	}

	produced := tx.OutputIDs(t)
	if len(produced) != len(adm.Provides) {
		return Event{}, fmt.Errorf("%w: output count", ErrStaleAdmission)
	}
	for i, id := range produced {
		if adm.Provides[i] != id {
			return Event{}, fmt.Errorf("%w: output %d id", ErrStaleAdmission, i)
		}
	}

	batch := l.db.NewBatch()
	up := l.utxos.Stage(batch)
	defer up.Discard()

	if revalidate {
		fresh, err := tx.Validate(t, utxo.Provider{Set: up})
		if err != nil {
			if tx.IsRejection(err) {
				return Event{}, fmt.Errorf("%w: %v", ErrStaleAdmission, err)
			}
			return Event{}, fmt.Errorf("revalidate: %w", err)
		}
		if fresh.Status() != tx.Accepted {
			return Event{}, fmt.Errorf("%w: %d input(s) missing", ErrStaleAdmission, len(fresh.Missing))
		}
		if fresh.Reward.Cmp(adm.Reward) != 0 {
			return Event{}, fmt.Errorf("%w: reward", ErrStaleAdmission)
		}
	}

	var in types.Value
	for i, input := range t.Inputs {
		u, err := up.Get(input.OutputID)
		if err != nil {
			if errors.Is(err, utxo.ErrNotFound) {
				return Event{}, fmt.Errorf("%w: input %d spent", ErrStaleAdmission, i)
			}
			return Event{}, fmt.Errorf("input %d: %w", i, err)
		}
		if err := up.Remove(input.OutputID); err != nil {
			return Event{}, fmt.Errorf("remove input %d: %w", i, err)
		}
		if in, ok = in.Add(u.Value); !ok {
			return Event{}, fmt.Errorf("%w: input overflow", ErrStaleAdmission)
		}
	}

	var out types.Value
	for i, o := range t.Outputs {
		u := &utxo.UTXO{
			ID:     produced[i],
			Value:  o.Value,
			Owner:  o.Owner,
			Origin: utxo.OriginTransaction,
		}
		if err := up.Insert(u); err != nil {
			if errors.Is(err, utxo.ErrExists) {
				return Event{}, fmt.Errorf("%w: output %d exists", ErrStaleAdmission, i)
			}
			return Event{}, fmt.Errorf("insert output %d: %w", i, err)
		}
		if out, ok = out.Add(o.Value); !ok {
			return Event{}, fmt.Errorf("%w: output overflow", ErrStaleAdmission)
		}
	}

	// The admitted reward must be exactly the surplus of the current inputs.
	surplus, ok := in.Sub(out)
	if !ok || surplus.Cmp(adm.Reward) != 0 {
		return Event{}, fmt.Errorf("%w: reward", ErrStaleAdmission)
	}

	next := *l.state
	next.RewardTotal = pool
	if err := putState(batch, &next); err != nil {
		return Event{}, err
	}
	if err := up.Commit(); err != nil {
		log.Ledger.Error().Err(err).Msg("Transaction commit failed")
		return Event{}, fmt.Errorf("commit transaction: %w", err)
	}
	l.state = &next

	hash := t.Hash()
	log.Ledger.Debug().
		Str("tx", hash.String()).
		Int("inputs", len(t.Inputs)).
		Int("outputs", len(t.Outputs)).
		Str("reward", adm.Reward.String()).
		Msg("Transaction applied")

	return Event{
		Kind:        TransactionApplied,
		Transaction: t,
		TxHash:      hash,
		Reward:      adm.Reward,
		Produced:    produced,
	}, nil
}
