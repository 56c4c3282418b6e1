// Package ledger maintains the UTXO set and reward pool.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Ledger errors.
var (
	ErrNotInitialized     = errors.New("ledger not initialized")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrDuplicateGenesis   = errors.New("duplicate genesis output")
	ErrGenesisMismatch    = errors.New("genesis does not match ledger")
	ErrNotAccepted        = errors.New("admission is not accepted")
	ErrStaleAdmission     = errors.New("admission does not match ledger state")
	ErrRewardOverflow     = errors.New("reward pool overflow")
	ErrNoRecipients       = errors.New("no reward recipients")
	ErrDuplicateRecipient = errors.New("duplicate reward recipient")
	ErrRewardCollision    = errors.New("reward output already exists")
	ErrConservation       = errors.New("value conservation violated")
)

// Ledger owns the UTXO set and the reward pool. All state changes are
// serialized by a single lock and persisted through one storage batch each.
type Ledger struct {
	mu       sync.RWMutex
	db       storage.DB
	utxos    *utxo.Store
	state    *State
	issuance Issuance

	hmu            sync.RWMutex
	txHandlers     []Handler
	rewardHandlers []Handler
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIssuance sets the issuance schedule used by Distribute.
func WithIssuance(is Issuance) Option {
	return func(l *Ledger) {
		if is != nil {
			l.issuance = is
		}
	}
}

// New opens a ledger over db, loading any persisted state.
func New(db storage.DB, opts ...Option) (*Ledger, error) {
	state, err := loadState(db)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	l := &Ledger{
		db:       db,
		utxos:    utxo.NewStore(db),
		state:    state,
		issuance: NoIssuance{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// InitFromGenesis inserts the genesis outputs. It refuses to run on an
// initialized ledger and fails with ErrDuplicateGenesis if two outputs
// derive the same id. Nothing is written on failure.
func (l *Ledger) InitFromGenesis(gen *config.Genesis) error {
	genHash, err := gen.Hash()
	if err != nil {
		return fmt.Errorf("genesis hash: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Initialized {
		return ErrAlreadyInitialized
	}

	batch := l.db.NewBatch()
	up := l.utxos.Stage(batch)
	defer up.Discard()

	var total types.Value
	for i, g := range gen.Outputs {
		out := tx.Output{Value: g.Value, Owner: g.Owner}
		u := &utxo.UTXO{
			ID:     tx.GenesisID(out),
			Value:  out.Value,
			Owner:  out.Owner,
			Origin: utxo.OriginGenesis,
		}
		if err := up.Insert(u); err != nil {
			if errors.Is(err, utxo.ErrExists) {
				return fmt.Errorf("%w: output %d", ErrDuplicateGenesis, i)
			}
			return fmt.Errorf("genesis output %d: %w", i, err)
		}
		var ok bool
		if total, ok = total.Add(out.Value); !ok {
			return fmt.Errorf("genesis output %d: %w", i, utxo.ErrValueOverflow)
		}
	}

	next := *l.state
	next.Genesis = total
	next.GenesisHash = genHash
	next.Initialized = true
	if err := putState(batch, &next); err != nil {
		return err
	}
	if err := up.Commit(); err != nil {
		log.Ledger.Error().Err(err).Msg("Genesis commit failed")
		return fmt.Errorf("commit genesis: %w", err)
	}
	l.state = &next

	log.Ledger.Info().
		Str("chain_id", gen.ChainID).
		Int("outputs", len(gen.Outputs)).
		Str("total", total.String()).
		Msg("Ledger initialized from genesis")
	return nil
}

// CheckGenesis verifies the ledger was initialized from gen.
func (l *Ledger) CheckGenesis(gen *config.Genesis) error {
	genHash, err := gen.Hash()
	if err != nil {
		return fmt.Errorf("genesis hash: %w", err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.state.Initialized {
		return ErrNotInitialized
	}
	if l.state.GenesisHash != genHash {
		return fmt.Errorf("%w: have %s, got %s", ErrGenesisMismatch, l.state.GenesisHash, genHash)
	}
	return nil
}

// IsInitialized reports whether genesis has been loaded.
func (l *Ledger) IsInitialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Initialized
}

// State returns a copy of the current ledger state.
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.state
}

// RewardTotal returns the undistributed reward pool.
func (l *Ledger) RewardTotal() types.Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.RewardTotal
}

// Epoch returns the number of distributions that minted outputs.
func (l *Ledger) Epoch() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Epoch
}

// Get returns the unspent output with the given id.
func (l *Ledger) Get(id types.Hash) (*utxo.UTXO, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.Get(id)
}

// Has reports whether id is unspent.
func (l *Ledger) Has(id types.Hash) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.Has(id)
}

// ByOwner returns every unspent output owned by owner.
func (l *Ledger) ByOwner(owner types.PublicKey) ([]*utxo.UTXO, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.ByOwner(owner)
}

// Balance returns the total value owned by owner.
func (l *Ledger) Balance(owner types.PublicKey) (types.Value, error) {
	owned, err := l.ByOwner(owner)
	if err != nil {
		return types.Value{}, err
	}
	var total types.Value
	for _, u := range owned {
		var ok bool
		if total, ok = total.Add(u.Value); !ok {
			return types.Value{}, utxo.ErrValueOverflow
		}
	}
	return total, nil
}

// UTXOCount returns the number of unspent outputs.
func (l *Ledger) UTXOCount() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.Count()
}

// StateRoot returns the commitment over the UTXO set.
func (l *Ledger) StateRoot() (types.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return utxo.Commitment(l.utxos)
}

// CheckConservation verifies that the unspent value plus the reward pool
// equals genesis plus everything issued.
func (l *Ledger) CheckConservation() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	unspent, err := l.utxos.Total()
	if err != nil {
		return err
	}
	held, ok := unspent.Add(l.state.RewardTotal)
	if !ok {
		return fmt.Errorf("%w: holdings overflow", ErrConservation)
	}
	minted, ok := l.state.Genesis.Add(l.state.Issued)
	if !ok {
		return fmt.Errorf("%w: minted overflow", ErrConservation)
	}
	if held.Cmp(minted) != 0 {
		return fmt.Errorf("%w: held %s, minted %s", ErrConservation, held, minted)
	}
	return nil
}
