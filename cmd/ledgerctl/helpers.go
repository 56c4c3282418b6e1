package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// keystoreDir returns <datadir>/<network>/keystore.
func keystoreDir(cfg *config.Config) string {
	return filepath.Join(cfg.ChainDataDir(), "keystore")
}

// loadGenesis returns the genesis file named in the config, or the
// built-in genesis for the network.
func loadGenesis(cfg *config.Config) (*config.Genesis, error) {
	if cfg.GenesisFile == "" {
		return config.GenesisFor(cfg.Network), nil
	}
	return config.LoadGenesis(cfg.GenesisFile)
}

// openDB opens the configured backend and returns it together with the
// chain's namespace inside it. Each chain id gets its own key prefix so one
// data directory can hold several ledgers. Closing the namespace is a no-op;
// callers close the backend.
func openDB(cfg *config.Config, gen *config.Genesis) (*storage.PrefixDB, storage.DB, error) {
	var db storage.DB
	switch cfg.DB.Backend {
	case config.BackendMemory:
		db = storage.NewMemory()
	default:
		b, err := storage.NewBadger(cfg.LedgerDir())
		if err != nil {
			return nil, nil, err
		}
		db = b
	}
	return storage.NewPrefixDB(db, []byte(gen.ChainID+"/")), db, nil
}

// readTx decodes a JSON transaction file.
func readTx(path string) (*tx.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t tx.Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &t, nil
}

// writeTx encodes t as indented JSON to path.
func writeTx(path string, t *tx.Transaction) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// parseOwners parses a comma-separated list of hex owner keys.
func parseOwners(s string) ([]types.PublicKey, error) {
	items := config.ParseList(s)
	if len(items) == 0 {
		return nil, fmt.Errorf("no owners given")
	}
	owners := make([]types.PublicKey, 0, len(items))
	for _, item := range items {
		owner, err := types.HexToPublicKey(item)
		if err != nil {
			return nil, fmt.Errorf("owner %q: %w", item, err)
		}
		owners = append(owners, owner)
	}
	return owners, nil
}

// walletCoins gathers the unspent outputs held by any of owners.
func walletCoins(l *ledger.Ledger, owners []types.PublicKey) ([]wallet.Coin, error) {
	var coins []wallet.Coin
	for _, owner := range owners {
		utxos, err := l.ByOwner(owner)
		if err != nil {
			return nil, err
		}
		for _, u := range utxos {
			coins = append(coins, wallet.Coin{ID: u.ID, Value: u.Value, Owner: u.Owner})
		}
	}
	return coins, nil
}

// buildPayment funds amount+fee from coins, paying amount to recipient and
// any change to changeOwner. The fee is left as the transaction's reward.
func buildPayment(coins []wallet.Coin, recipient, changeOwner types.PublicKey, amount, fee types.Value) (*tx.Transaction, map[types.Hash]types.PublicKey, error) {
	target, ok := amount.Add(fee)
	if !ok {
		return nil, nil, fmt.Errorf("amount plus fee overflows")
	}
	sel, err := wallet.SelectCoins(coins, target)
	if err != nil {
		return nil, nil, err
	}

	b := tx.NewBuilder()
	owners := make(map[types.Hash]types.PublicKey, len(sel.Inputs))
	for _, c := range sel.Inputs {
		b.AddInput(c.ID)
		owners[c.ID] = c.Owner
	}
	b.AddOutput(amount, recipient)
	if !sel.Change.IsZero() {
		b.AddOutput(sel.Change, changeOwner)
	}
	return b.Build(), owners, nil
}

// inputOwners looks up the owner of every output t spends.
func inputOwners(l *ledger.Ledger, t *tx.Transaction) (map[types.Hash]types.PublicKey, error) {
	owners := make(map[types.Hash]types.PublicKey, len(t.Inputs))
	for _, in := range t.Inputs {
		u, err := l.Get(in.OutputID)
		if err != nil {
			if errors.Is(err, utxo.ErrNotFound) {
				return nil, fmt.Errorf("input %s is not in the ledger", in.OutputID)
			}
			return nil, err
		}
		owners[in.OutputID] = u.Owner
	}
	return owners, nil
}

// reportDiscarded lists transactions that were still parked when submit
// finished. The pending pool is not persisted, so they are dropped.
func reportDiscarded(w io.Writer, hashes []types.Hash) {
	if len(hashes) == 0 {
		return
	}
	fmt.Fprintf(w, "%d transaction(s) still waiting on missing inputs were discarded:\n", len(hashes))
	for _, h := range hashes {
		fmt.Fprintf(w, "  %s\n", h)
	}
	fmt.Fprintln(w, "Pass the transactions that create those inputs in the same submit invocation.")
}
