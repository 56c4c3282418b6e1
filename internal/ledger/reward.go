package ledger

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Distribution describes the outcome of one call to Distribute.
type Distribution struct {
	// Epoch is the epoch the reward outputs were minted at.
	Epoch uint64
	// Pool is the reward pool including this epoch's issuance.
	Pool types.Value
	// Issued is the value minted by issuance for this epoch.
	Issued types.Value
	// Share is the value paid to each recipient.
	Share types.Value
	// Remainder stays in the pool for the next distribution.
	Remainder types.Value
	// Outputs are the reward outputs created, in recipient order.
	Outputs []*utxo.UTXO
}

// Minted reports whether the distribution created any outputs.
func (d *Distribution) Minted() bool {
	return len(d.Outputs) > 0
}

// Distribute splits the reward pool, plus the issuance due at the current
// epoch, equally among recipients. Each recipient receives one output
// identified by tx.RewardID. The undivided remainder stays in the pool.
//
// A pool too small to give every recipient a positive share leaves the
// ledger untouched and returns a Distribution with no outputs.
func (l *Ledger) Distribute(recipients []types.PublicKey) (*Distribution, error) {
	l.mu.Lock()
	dist, events, err := l.distribute(recipients)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	l.emit(events)
	return dist, nil
}

func (l *Ledger) distribute(recipients []types.PublicKey) (*Distribution, []Event, error) {
	if !l.state.Initialized {
		return nil, nil, ErrNotInitialized
	}

	epoch := l.state.Epoch
	issued := l.issuance.Issuance(epoch)
	pool, ok := l.state.RewardTotal.Add(issued)
	if !ok {
		return nil, nil, ErrRewardOverflow
	}
	dist := &Distribution{Epoch: epoch, Pool: pool}
	if pool.IsZero() {
		return dist, nil, nil
	}
	if len(recipients) == 0 {
		return nil, nil, ErrNoRecipients
	}
	seen := make(map[types.PublicKey]struct{}, len(recipients))
	for i, r := range recipients {
		if _, dup := seen[r]; dup {
			return nil, nil, fmt.Errorf("%w: recipient %d", ErrDuplicateRecipient, i)
		}
		seen[r] = struct{}{}
	}

	n := uint64(len(recipients))
	share, _ := pool.QuoRem64(n)
	if share.IsZero() {
		log.Reward.Debug().
			Str("pool", pool.String()).
			Int("recipients", len(recipients)).
			Msg("Reward pool too small to distribute")
		return dist, nil, nil
	}
	paid, ok := share.Mul64(n)
	if !ok {
		return nil, nil, ErrRewardOverflow
	}
	remainder, ok := pool.Sub(paid)
	if !ok {
		return nil, nil, ErrRewardOverflow
	}
	totalIssued, ok := l.state.Issued.Add(issued)
	if !ok {
		return nil, nil, ErrRewardOverflow
	}

	batch := l.db.NewBatch()
	up := l.utxos.Stage(batch)
	defer up.Discard()

	outputs := make([]*utxo.UTXO, 0, len(recipients))
	events := make([]Event, 0, len(recipients))
	for i, r := range recipients {
		out := tx.Output{Value: share, Owner: r}
		u := &utxo.UTXO{
			ID:     tx.RewardID(out, epoch),
			Value:  share,
			Owner:  r,
			Origin: utxo.OriginReward,
			Epoch:  epoch,
		}
		if err := up.Insert(u); err != nil {
			if errors.Is(err, utxo.ErrExists) {
				return nil, nil, fmt.Errorf("%w: recipient %d", ErrRewardCollision, i)
			}
			return nil, nil, fmt.Errorf("insert reward %d: %w", i, err)
		}
		outputs = append(outputs, u)
		events = append(events, Event{
			Kind:     RewardIssued,
			Amount:   share,
			OutputID: u.ID,
			Owner:    r,
			Epoch:    epoch,
		})
	}

	next := *l.state
	next.RewardTotal = remainder
	next.Issued = totalIssued
	next.Epoch = epoch + 1
	if err := putState(batch, &next); err != nil {
		return nil, nil, err
	}
	if err := up.Commit(); err != nil {
		log.Reward.Error().Err(err).Uint64("epoch", epoch).Msg("Reward commit failed")
		return nil, nil, fmt.Errorf("commit rewards: %w", err)
	}
	l.state = &next

	dist.Issued = issued
	dist.Share = share
	dist.Remainder = remainder
	dist.Outputs = outputs

	log.Reward.Info().
		Uint64("epoch", epoch).
		Str("pool", pool.String()).
		Str("share", share.String()).
		Str("remainder", remainder.String()).
		Int("recipients", len(recipients)).
		Msg("Rewards distributed")
	return dist, events, nil
}
