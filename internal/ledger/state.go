package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// keyState holds the ledger State as JSON, next to the UTXO prefixes.
var keyState = []byte("s/ledger")

// State holds the ledger accumulators that live outside the UTXO set.
type State struct {
	// RewardTotal is the undistributed reward pool.
	RewardTotal types.Value `json:"reward_total"`
	// Epoch counts distributions that minted outputs.
	Epoch uint64 `json:"epoch"`
	// Issued is the total value minted by issuance across all epochs.
	Issued types.Value `json:"issued"`
	// Genesis is the total value of the genesis outputs.
	Genesis types.Value `json:"genesis"`
	// GenesisHash identifies the genesis the ledger was initialized from.
	GenesisHash types.Hash `json:"genesis_hash"`
	// Initialized is set once genesis has been loaded.
	Initialized bool `json:"initialized"`
}

func loadState(db storage.DB) (*State, error) {
	data, err := db.Get(keyState)
	if errors.Is(err, storage.ErrNotFound) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state get: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("state unmarshal: %w", err)
	}
	return &s, nil
}

func putState(batch storage.Batch, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state marshal: %w", err)
	}
	if err := batch.Put(keyState, data); err != nil {
		return fmt.Errorf("state put: %w", err)
	}
	return nil
}
