// Package pending parks transactions whose inputs do not exist yet and
// resubmits them once the outputs they wait on are created.
package pending

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Pool errors.
var (
	ErrAlreadyExists = errors.New("transaction already pending")
	ErrNoMissing     = errors.New("transaction has no missing inputs")
)

// Submitter validates and applies transactions. *ledger.Ledger implements it.
type Submitter interface {
	Submit(t *tx.Transaction) (*tx.Admission, error)
}

// entry wraps a parked transaction with the inputs it waits on.
type entry struct {
	tx      *tx.Transaction
	txHash  types.Hash
	missing []types.Hash
	seq     uint64 // Arrival order, oldest first.
}

// Pool holds pending transactions indexed by the output ids they wait on.
type Pool struct {
	mu        sync.Mutex
	txs       map[types.Hash]*entry                // txHash -> entry
	byMissing map[types.Hash]map[types.Hash]*entry // missing id -> waiting txs
	maxSize   int
	seq       uint64
}

// New creates a pool holding at most maxSize transactions.
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = config.DefaultPendingSize
	}
	return &Pool{
		txs:       make(map[types.Hash]*entry),
		byMissing: make(map[types.Hash]map[types.Hash]*entry),
		maxSize:   maxSize,
	}
}

// Add parks t until every id in missing exists. When the pool is full the
// oldest transaction is evicted.
func (p *Pool) Add(t *tx.Transaction, missing []types.Hash) error {
	if len(missing) == 0 {
		return ErrNoMissing
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := t.Hash()
	if _, exists := p.txs[txHash]; exists {
		return ErrAlreadyExists
	}

	for len(p.txs) >= p.maxSize {
		oldest := p.findOldest()
		log.Pending.Debug().Str("tx", oldest.String()).Msg("Evicting oldest pending transaction")
		p.removeLocked(oldest)
	}

	p.seq++
	e := &entry{
		tx:      t,
		txHash:  txHash,
		missing: append([]types.Hash(nil), missing...),
		seq:     p.seq,
	}
	p.txs[txHash] = e
	for _, id := range e.missing {
		waiting, ok := p.byMissing[id]
		if !ok {
			waiting = make(map[types.Hash]*entry)
			p.byMissing[id] = waiting
		}
		waiting[txHash] = e
	}
	return nil
}

// Remove drops a transaction from the pool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	for _, id := range e.missing {
		if waiting, ok := p.byMissing[id]; ok {
			delete(waiting, txHash)
			if len(waiting) == 0 {
				delete(p.byMissing, id)
			}
		}
	}
	delete(p.txs, txHash)
}

// findOldest returns the hash of the earliest parked transaction.
// Must be called with p.mu held.
func (p *Pool) findOldest() types.Hash {
	var (
		oldest types.Hash
		seq    uint64
	)
	for h, e := range p.txs {
		if seq == 0 || e.seq < seq {
			seq = e.seq
			oldest = h
		}
	}
	return oldest
}

// Has checks if a transaction is parked.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a parked transaction, or nil.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// Count returns the number of parked transactions.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Waiting returns the hashes of transactions waiting on id.
func (p *Pool) Waiting(id types.Hash) []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	hashes := make([]types.Hash, 0, len(p.byMissing[id]))
	for h := range p.byMissing[id] {
		hashes = append(hashes, h)
	}
	return hashes
}

// Hashes returns the hashes of all parked transactions, oldest first.
func (p *Pool) Hashes() []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.sortedLocked(p.txs)
	hashes := make([]types.Hash, len(entries))
	for i, e := range entries {
		hashes[i] = e.txHash
	}
	return hashes
}

func (p *Pool) sortedLocked(m map[types.Hash]*entry) []*entry {
	entries := make([]*entry, 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// Rejected pairs a dropped transaction with the reason it was rejected.
type Rejected struct {
	TxHash types.Hash
	Err    error
}

// Resolution reports what Resolve or Process did.
type Resolution struct {
	Accepted []types.Hash
	Rejected []Rejected
	Parked   []types.Hash
}

// Process submits t. A pending transaction is parked; an accepted one
// releases every parked transaction that waited on its outputs.
func (p *Pool) Process(s Submitter, t *tx.Transaction) (*Resolution, error) {
	res := &Resolution{}
	adm, err := s.Submit(t)
	if err != nil {
		if tx.IsRejection(err) {
			res.Rejected = append(res.Rejected, Rejected{TxHash: t.Hash(), Err: err})
			return res, nil
		}
		return res, err
	}
	if adm.Status() == tx.Pending {
		if err := p.Add(t, adm.Missing); err != nil {
			return res, fmt.Errorf("park: %w", err)
		}
		res.Parked = append(res.Parked, t.Hash())
		return res, nil
	}
	res.Accepted = append(res.Accepted, t.Hash())
	return res, p.resolve(s, adm.Provides, res)
}

// Resolve resubmits every parked transaction waiting on an id in produced,
// following the outputs of each accepted transaction in turn. Rejected
// transactions are dropped and ones still pending are parked again on
// their new missing set.
func (p *Pool) Resolve(s Submitter, produced []types.Hash) (*Resolution, error) {
	res := &Resolution{}
	return res, p.resolve(s, produced, res)
}

func (p *Pool) resolve(s Submitter, produced []types.Hash, res *Resolution) error {
	queue := append([]types.Hash(nil), produced...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		taken := p.take(id)
		for i, e := range taken {
			adm, err := s.Submit(e.tx)
			switch {
			case err != nil && tx.IsRejection(err):
				log.Pending.Debug().Err(err).Str("tx", e.txHash.String()).Msg("Dropping rejected pending transaction")
				res.Rejected = append(res.Rejected, Rejected{TxHash: e.txHash, Err: err})
			case err != nil:
				// Storage failure: this entry and every one not yet tried
				// go back into the pool for a later attempt.
				p.repark(taken[i:])
				return fmt.Errorf("resubmit %s: %w", e.txHash, err)
			case adm.Status() == tx.Pending:
				if err := p.Add(e.tx, adm.Missing); err != nil && !errors.Is(err, ErrAlreadyExists) {
					return fmt.Errorf("re-park %s: %w", e.txHash, err)
				}
				res.Parked = append(res.Parked, e.txHash)
			default:
				res.Accepted = append(res.Accepted, e.txHash)
				queue = append(queue, adm.Provides...)
			}
		}
	}
	if len(res.Accepted) > 0 || len(res.Rejected) > 0 {
		log.Pending.Info().
			Int("accepted", len(res.Accepted)).
			Int("rejected", len(res.Rejected)).
			Int("parked", p.Count()).
			Msg("Resolved pending transactions")
	}
	return nil
}

// repark restores entries removed by take, keeping their missing sets.
func (p *Pool) repark(entries []*entry) {
	for _, e := range entries {
		if err := p.Add(e.tx, e.missing); err != nil && !errors.Is(err, ErrAlreadyExists) {
			log.Pending.Warn().Err(err).Str("tx", e.txHash.String()).Msg("Failed to re-park transaction")
		}
	}
}

// take removes and returns, oldest first, the transactions waiting on id.
func (p *Pool) take(id types.Hash) []*entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	waiting, ok := p.byMissing[id]
	if !ok {
		return nil
	}
	entries := p.sortedLocked(waiting)
	for _, e := range entries {
		p.removeLocked(e.txHash)
	}
	return entries
}
