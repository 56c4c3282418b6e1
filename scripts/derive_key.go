// derive_key.go prints the owner key for a hex-encoded private key file, or
// for the first wallet key of a mnemonic when --mnemonic is given.
// Usage: go run scripts/derive_key.go <keyfile>
//
//	go run scripts/derive_key.go --mnemonic "<words>"
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile> | --mnemonic <words>")
		os.Exit(1)
	}

	var keyBytes []byte
	if os.Args[1] == "--mnemonic" && len(os.Args) > 2 {
		seed, err := wallet.SeedFromMnemonic(strings.Join(os.Args[2:], " "), "")
		exitOn(err)
		master, err := wallet.NewMasterKey(seed)
		exitOn(err)
		node, err := master.DeriveOwner(0, 0)
		exitOn(err)
		keyBytes = node.PrivateKeyBytes()
	} else {
		data, err := os.ReadFile(os.Args[1])
		exitOn(err)
		keyBytes, err = hex.DecodeString(strings.TrimSpace(string(data)))
		exitOn(err)
	}

	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	exitOn(err)
	fmt.Printf("secret=%s\n", hex.EncodeToString(key.Serialize()))
	fmt.Printf("owner=%s\n", key.Owner())
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
