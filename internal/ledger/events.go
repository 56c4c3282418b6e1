package ledger

import (
	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// EventKind identifies a ledger notification.
type EventKind int

const (
	TransactionApplied EventKind = iota
	RewardIssued
)

func (k EventKind) String() string {
	switch k {
	case TransactionApplied:
		return "transaction_applied"
	case RewardIssued:
		return "reward_issued"
	default:
		return "unknown"
	}
}

// Event is delivered to handlers after a change has been committed.
type Event struct {
	Kind EventKind

	// TransactionApplied fields.
	Transaction *tx.Transaction
	TxHash      types.Hash
	Reward      types.Value
	// Produced lists the ids of the outputs the transaction created.
	Produced []types.Hash

	// RewardIssued fields.
	Amount   types.Value
	OutputID types.Hash
	Owner    types.PublicKey
	Epoch    uint64
}

// Handler receives ledger events. Handlers run synchronously after the
// ledger lock is released, so they may call back into the ledger.
type Handler func(Event)

// OnTransactionApplied registers fn for TransactionApplied events.
func (l *Ledger) OnTransactionApplied(fn Handler) {
	l.hmu.Lock()
	defer l.hmu.Unlock()
	l.txHandlers = append(l.txHandlers, fn)
}

// OnRewardIssued registers fn for RewardIssued events.
func (l *Ledger) OnRewardIssued(fn Handler) {
	l.hmu.Lock()
	defer l.hmu.Unlock()
	l.rewardHandlers = append(l.rewardHandlers, fn)
}

// emit delivers events in order. A panicking handler is logged and skipped.
func (l *Ledger) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	l.hmu.RLock()
	txHandlers := append([]Handler(nil), l.txHandlers...)
	rewardHandlers := append([]Handler(nil), l.rewardHandlers...)
	l.hmu.RUnlock()

	for _, ev := range events {
		handlers := txHandlers
		if ev.Kind == RewardIssued {
			handlers = rewardHandlers
		}
		for _, h := range handlers {
			callHandler(h, ev)
		}
	}
}

func callHandler(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Ledger.Error().
				Interface("panic", r).
				Str("event", ev.Kind.String()).
				Msg("Event handler panicked")
		}
	}()
	h(ev)
}
