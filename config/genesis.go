package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or ledger state diverges.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units. All ledger values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// Transaction size limits.
const (
	MaxTxInputs  = 2500 // Max inputs per transaction
	MaxTxOutputs = 2500 // Max outputs per transaction
)

// MaxHalvings bounds the issuance schedule: after this many halvings a
// 128-bit initial amount has shifted to zero.
const MaxHalvings = 128

// Genesis holds the initial ledger contents and protocol rules.
// It is immutable after launch; changes require replaying from scratch.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name,omitempty"`
	Symbol    string `json:"symbol,omitempty"`

	// Initial unspent outputs, each keyed by the hash of its own encoding.
	Outputs []GenesisOutput `json:"outputs"`

	// Per-distribution issuance added to the reward pool.
	Issuance IssuanceRules `json:"issuance"`
}

// GenesisOutput is one initial allocation.
type GenesisOutput struct {
	Value types.Value     `json:"value"`
	Owner types.PublicKey `json:"owner"`
}

// IssuanceRules defines new value minted into the reward pool at each
// distribution. Initial is halved every HalvingInterval distributions;
// an interval of 0 keeps Initial constant. A zero Initial disables issuance.
type IssuanceRules struct {
	Initial         types.Value `json:"initial"`
	HalvingInterval uint64      `json:"halving_interval,omitempty"`
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/8888'/0'/0/0 (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet owner.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetOwner is the owner key (x-only hex) derived from TestnetMnemonic.
	TestnetOwner = "0bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"

	// MainnetOwner receives the mainnet genesis allocation.
	MainnetOwner = "cba4d0ee4c55f5ea620393a6e6e9dafe959bfa6ddff964221126a3e41ad0487d"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	owner, _ := types.HexToPublicKey(MainnetOwner)
	return &Genesis{
		ChainID:   "klingnet-ledger-mainnet-1",
		ChainName: "Klingnet Ledger Mainnet",
		Symbol:    "KGX",
		Outputs: []GenesisOutput{
			{Value: types.NewValue(100_000 * Coin), Owner: owner},
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "klingnet-ledger-testnet-1"
	g.ChainName = "Klingnet Ledger Testnet"

	owner, _ := types.HexToPublicKey(TestnetOwner)
	g.Outputs = []GenesisOutput{
		{Value: types.NewValue(200_000 * Coin), Owner: owner},
	}

	// Testnet mints a small, halving reward into every distribution.
	g.Issuance = IssuanceRules{
		Initial:         types.NewValue(20 * MilliCoin),
		HalvingInterval: 1000,
	}
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}

	// Outputs must be positive, distinct, and sum without overflow.
	var total types.Value
	seen := make(map[GenesisOutput]int, len(g.Outputs))
	for i, out := range g.Outputs {
		if out.Value.IsZero() {
			return fmt.Errorf("output %d: value must be positive", i)
		}
		if out.Owner.IsZero() {
			return fmt.Errorf("output %d: owner is required", i)
		}
		if j, dup := seen[out]; dup {
			return fmt.Errorf("output %d duplicates output %d", i, j)
		}
		seen[out] = i

		var ok bool
		if total, ok = total.Add(out.Value); !ok {
			return fmt.Errorf("output %d: genesis total overflows", i)
		}
	}

	return nil
}

// TotalValue returns the sum of all genesis outputs. Validate guarantees
// the sum fits.
func (g *Genesis) TotalValue() types.Value {
	var total types.Value
	for _, out := range g.Outputs {
		total, _ = total.Add(out.Value)
	}
	return total
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to detect a ledger opened with a different genesis.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
