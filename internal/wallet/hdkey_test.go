package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func testnetSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(config.TestnetMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	return seed
}

func TestNewMasterKey_InvalidSeedLength(t *testing.T) {
	for _, n := range []int{0, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey with %d-byte seed should fail", n)
		}
	}
}

func TestDeriveOwner_TestnetVector(t *testing.T) {
	master, err := NewMasterKey(testnetSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	node, err := master.DeriveOwner(0, 0)
	if err != nil {
		t.Fatalf("DeriveOwner: %v", err)
	}

	const wantSecret = "1f0717e6e34acc6721021f4dfed54558ec8452452b6195545d06dd348b220091"
	if got := hex.EncodeToString(node.PrivateKeyBytes()); got != wantSecret {
		t.Errorf("secret = %s, want %s", got, wantSecret)
	}

	signer, err := node.Signer()
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if got := signer.Owner().String(); got != config.TestnetOwner {
		t.Errorf("owner = %s, want %s", got, config.TestnetOwner)
	}
}

func TestDerivePath_MatchesDeriveOwner(t *testing.T) {
	master, _ := NewMasterKey(testnetSeed(t))
	a, err := master.DeriveOwner(1, 7)
	if err != nil {
		t.Fatalf("DeriveOwner: %v", err)
	}
	b, err := master.DerivePath(PurposeBIP44, CoinType, 0x80000001, ChainOwner, 7)
	if err != nil {
		t.Fatalf("DerivePath: %v", err)
	}
	if hex.EncodeToString(a.PrivateKeyBytes()) != hex.EncodeToString(b.PrivateKeyBytes()) {
		t.Error("DeriveOwner and DerivePath disagree")
	}
}

func TestOwnerKeys(t *testing.T) {
	keys, err := OwnerKeys(testnetSeed(t), 0, 3)
	if err != nil {
		t.Fatalf("OwnerKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("derived %d owners, want 3", len(keys))
	}
	testnet, _ := types.HexToPublicKey(config.TestnetOwner)
	signer, ok := keys[testnet]
	if !ok {
		t.Fatal("index 0 should be the testnet owner")
	}

	msg := []byte("spend")
	sig, err := signer.SignMessage(msg)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if !crypto.Verify(sig, msg, testnet) {
		t.Error("derived key should sign for the testnet owner")
	}
	for owner, key := range keys {
		if key.Owner() != owner {
			t.Errorf("key indexed under %s owns %s", owner, key.Owner())
		}
	}
}
