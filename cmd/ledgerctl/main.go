// ledgerctl drives a Klingnet UTXO ledger from the command line.
//
// Usage:
//
//	ledgerctl [options] <command> [arguments]
//	ledgerctl --help
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/pending"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
	"golang.org/x/term"
)

func main() {
	cfg, flags, err := config.Load(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fatal("%v", err)
	}
	if cfg == nil {
		if flags.Version {
			fmt.Printf("ledgerctl %s\n", config.Version)
		} else {
			config.PrintUsage(os.Stdout)
		}
		return
	}
	if len(flags.Args) == 0 {
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]

	// Key management does not touch the ledger database.
	switch cmd {
	case "keygen":
		cmdKeygen(cfg, cmdArgs)
		return
	case "wallet":
		cmdWallet(cfg, cmdArgs)
		return
	}

	env := openLedger(cfg)
	defer env.close()

	if cmd == "reset" {
		cmdReset(env, cmdArgs)
		return
	}
	if env.l.IsInitialized() {
		if err := env.l.CheckGenesis(env.gen); err != nil {
			fatal("%v (use reset to wipe this chain's data)", err)
		}
	}

	switch cmd {
	case "init":
		cmdInit(env)
	case "submit":
		cmdSubmit(cfg, env, cmdArgs)
	case "validate":
		cmdValidate(env, cmdArgs)
	case "distribute":
		cmdDistribute(env, cmdArgs)
	case "status":
		cmdStatus(env)
	case "balance":
		cmdBalance(env, cmdArgs)
	case "sign":
		cmdSign(cfg, env, cmdArgs)
	case "pay":
		cmdPay(cfg, env, cmdArgs)
	default:
		env.close()
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}
}

// ledgerEnv bundles an open ledger with its genesis and database.
type ledgerEnv struct {
	gen     *config.Genesis
	backend storage.DB
	ns      *storage.PrefixDB
	l       *ledger.Ledger
}

// active is the open ledger, closed by fatal before exiting.
var active *ledgerEnv

func (e *ledgerEnv) close() {
	if e.backend == nil {
		return
	}
	if err := e.backend.Close(); err != nil {
		log.Storage.Warn().Err(err).Msg("Close database")
	}
	e.backend = nil
	active = nil
}

func openLedger(cfg *config.Config) *ledgerEnv {
	gen, err := loadGenesis(cfg)
	if err != nil {
		fatal("load genesis: %v", err)
	}
	if err := gen.Validate(); err != nil {
		fatal("invalid genesis: %v", err)
	}
	log.SetChain(gen.ChainID)
	ns, backend, err := openDB(cfg, gen)
	if err != nil {
		fatal("open database: %v", err)
	}
	l, err := ledger.New(ns, ledger.WithIssuance(ledger.IssuanceFromRules(gen.Issuance)))
	if err != nil {
		backend.Close()
		fatal("open ledger: %v", err)
	}
	log.CLI.Debug().Str("backend", cfg.DB.Backend).Msg("Ledger opened")
	active = &ledgerEnv{gen: gen, backend: backend, ns: ns, l: l}
	return active
}

// ── Ledger commands ─────────────────────────────────────────────────────

func cmdInit(env *ledgerEnv) {
	if err := env.l.InitFromGenesis(env.gen); err != nil {
		fatal("init: %v", err)
	}
	root, err := env.l.StateRoot()
	if err != nil {
		fatal("state root: %v", err)
	}
	fmt.Printf("Initialized %s with %d outputs (total %s)\n",
		env.gen.ChainID, len(env.gen.Outputs), env.gen.TotalValue())
	fmt.Printf("State root: %s\n", root)
}

func cmdSubmit(cfg *config.Config, env *ledgerEnv, args []string) {
	if len(args) == 0 {
		fatal("usage: submit <tx.json>...")
	}

	env.l.OnTransactionApplied(func(ev ledger.Event) {
		fmt.Printf("Applied   %s  reward=%s outputs=%d\n", ev.TxHash, ev.Reward, len(ev.Produced))
	})

	pool := pending.New(cfg.Pending.MaxSize)
	for _, path := range args {
		t, err := readTx(path)
		if err != nil {
			fatal("%v", err)
		}
		res, err := pool.Process(env.l, t)
		if err != nil {
			fatal("submit %s: %v", path, err)
		}
		for _, r := range res.Rejected {
			fmt.Printf("Rejected  %s  %v\n", r.TxHash, r.Err)
		}
		for _, h := range res.Parked {
			fmt.Printf("Pending   %s  (%s)\n", h, path)
		}
	}

	if pool.Count() > 0 {
		log.CLI.Warn().Int("count", pool.Count()).Msg("Discarding unresolved pending transactions")
		reportDiscarded(os.Stdout, pool.Hashes())
	}
	fmt.Printf("Reward pool: %s\n", env.l.RewardTotal())
}

func cmdReset(env *ledgerEnv, args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Confirm wiping the ledger")
	fs.Parse(args)
	if !*yes {
		fatal("reset deletes every output and the reward pool of %s; rerun with --yes", env.gen.ChainID)
	}
	if err := env.ns.DeleteAll(); err != nil {
		fatal("reset: %v", err)
	}
	log.CLI.Warn().Msg("Ledger data deleted")
	fmt.Printf("Reset %s\n", env.gen.ChainID)
}

func cmdValidate(env *ledgerEnv, args []string) {
	if len(args) != 1 {
		fatal("usage: validate <tx.json>")
	}
	t, err := readTx(args[0])
	if err != nil {
		fatal("%v", err)
	}
	adm, err := env.l.Validate(t)
	if err != nil {
		if tx.IsRejection(err) {
			fmt.Printf("Rejected: %v\n", err)
			env.close()
			os.Exit(2)
		}
		fatal("validate: %v", err)
	}

	fmt.Printf("Transaction: %s\n", t.Hash())
	fmt.Printf("Status:      %s\n", adm.Status())
	if adm.Status() == tx.Pending {
		fmt.Println("Missing:")
		for _, id := range adm.Missing {
			fmt.Printf("  %s\n", id)
		}
		return
	}
	fmt.Printf("Reward:      %s\n", adm.Reward)
	fmt.Println("Provides:")
	for _, id := range adm.Provides {
		fmt.Printf("  %s\n", id)
	}
}

func cmdDistribute(env *ledgerEnv, args []string) {
	if len(args) != 1 {
		fatal("usage: distribute <owner,...>")
	}
	recipients, err := parseOwners(args[0])
	if err != nil {
		fatal("%v", err)
	}
	dist, err := env.l.Distribute(recipients)
	if err != nil {
		fatal("distribute: %v", err)
	}
	if !dist.Minted() {
		fmt.Printf("Nothing distributed (pool %s across %d recipient(s))\n", dist.Pool, len(recipients))
		return
	}
	fmt.Printf("Epoch %d: distributed %s from pool %s (issued %s)\n",
		dist.Epoch, dist.Share, dist.Pool, dist.Issued)
	for _, out := range dist.Outputs {
		fmt.Printf("  %s  %s -> %s\n", out.ID, out.Value, out.Owner)
	}
	fmt.Printf("Remainder: %s\n", dist.Remainder)
}

func cmdStatus(env *ledgerEnv) {
	st := env.l.State()
	fmt.Printf("Chain ID:      %s\n", env.gen.ChainID)
	if !st.Initialized {
		fmt.Println("Initialized:   no")
		return
	}
	count, err := env.l.UTXOCount()
	if err != nil {
		fatal("count: %v", err)
	}
	root, err := env.l.StateRoot()
	if err != nil {
		fatal("state root: %v", err)
	}
	supply := "ok"
	if err := env.l.CheckConservation(); err != nil {
		supply = err.Error()
	}

	fmt.Println("Initialized:   yes")
	fmt.Printf("Genesis hash:  %s\n", st.GenesisHash)
	fmt.Printf("Genesis total: %s\n", st.Genesis)
	fmt.Printf("Issued:        %s\n", st.Issued)
	fmt.Printf("Reward pool:   %s\n", st.RewardTotal)
	fmt.Printf("Epoch:         %d\n", st.Epoch)
	fmt.Printf("UTXOs:         %d\n", count)
	fmt.Printf("State root:    %s\n", root)
	fmt.Printf("Supply check:  %s\n", supply)
}

func cmdBalance(env *ledgerEnv, args []string) {
	if len(args) != 1 {
		fatal("usage: balance <owner>")
	}
	owner, err := types.HexToPublicKey(args[0])
	if err != nil {
		fatal("invalid owner: %v", err)
	}
	utxos, err := env.l.ByOwner(owner)
	if err != nil {
		fatal("balance: %v", err)
	}
	total, err := env.l.Balance(owner)
	if err != nil {
		fatal("balance: %v", err)
	}
	for _, u := range utxos {
		fmt.Printf("  %s  %s  (%s)\n", u.ID, u.Value, u.Origin)
	}
	fmt.Printf("Balance: %s in %d output(s)\n", total, len(utxos))
}

// ── Signing and payments ────────────────────────────────────────────────

func cmdSign(cfg *config.Config, env *ledgerEnv, args []string) {
	if len(args) == 0 {
		fatal("usage: sign <tx.json> [--wallet name | --key hex] [--out path]")
	}
	path := args[0]
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet to sign with")
	keyHex := fs.String("key", "", "Raw private key (hex)")
	out := fs.String("out", "", "Output file (default: overwrite input)")
	fs.Parse(args[1:])

	t, err := readTx(path)
	if err != nil {
		fatal("%v", err)
	}
	owners, err := inputOwners(env.l, t)
	if err != nil {
		fatal("%v", err)
	}

	var signers map[types.PublicKey]crypto.Signer
	switch {
	case *keyHex != "":
		key := parseKey(*keyHex)
		defer key.Zero()
		signers = map[types.PublicKey]crypto.Signer{key.Owner(): key}
	case *walletName != "":
		signers = walletSigners(cfg, *walletName)
	default:
		fatal("sign needs --wallet or --key")
	}

	if err := tx.SignInputs(t, func(id types.Hash) (crypto.Signer, error) {
		signer, ok := signers[owners[id]]
		if !ok {
			return nil, fmt.Errorf("no key for owner %s", owners[id])
		}
		return signer, nil
	}); err != nil {
		fatal("sign: %v", err)
	}

	dest := path
	if *out != "" {
		dest = *out
	}
	if err := writeTx(dest, t); err != nil {
		fatal("write: %v", err)
	}
	fmt.Printf("Signed %d input(s): %s\n", len(t.Inputs), t.Hash())
}

func cmdPay(cfg *config.Config, env *ledgerEnv, args []string) {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet to pay from")
	to := fs.String("to", "", "Recipient owner key (hex)")
	amountStr := fs.String("amount", "", "Amount to send")
	feeStr := fs.String("fee", "0", "Reward left for distribution")
	out := fs.String("out", "", "Write the signed transaction instead of submitting it")
	fs.Parse(args)

	if *walletName == "" || *to == "" || *amountStr == "" {
		fatal("usage: pay --wallet <name> --to <owner> --amount <value> [--fee <value>] [--out tx.json]")
	}
	recipient, err := types.HexToPublicKey(*to)
	if err != nil {
		fatal("invalid recipient: %v", err)
	}
	amount, err := types.ParseValue(*amountStr)
	if err != nil || amount.IsZero() {
		fatal("invalid amount %q", *amountStr)
	}
	fee, err := types.ParseValue(*feeStr)
	if err != nil {
		fatal("invalid fee %q", *feeStr)
	}

	signers := walletSigners(cfg, *walletName)
	ks := openKeystore(cfg)
	entries, err := ks.Owners(*walletName)
	if err != nil {
		fatal("%v", err)
	}
	if len(entries) == 0 {
		fatal("wallet %s has no owner keys", *walletName)
	}
	owned := make([]types.PublicKey, 0, len(entries))
	for _, e := range entries {
		owned = append(owned, e.Owner)
	}

	coins, err := walletCoins(env.l, owned)
	if err != nil {
		fatal("%v", err)
	}
	t, inputs, err := buildPayment(coins, recipient, owned[0], amount, fee)
	if err != nil {
		fatal("%v", err)
	}
	if err := tx.SignInputs(t, func(id types.Hash) (crypto.Signer, error) {
		signer, ok := signers[inputs[id]]
		if !ok {
			return nil, fmt.Errorf("wallet holds no key for %s", inputs[id])
		}
		return signer, nil
	}); err != nil {
		fatal("sign: %v", err)
	}

	if *out != "" {
		if err := writeTx(*out, t); err != nil {
			fatal("write: %v", err)
		}
		fmt.Printf("Wrote %s to %s\n", t.Hash(), *out)
		return
	}

	adm, err := env.l.Submit(t)
	if err != nil {
		fatal("submit: %v", err)
	}
	fmt.Printf("Paid %s to %s\n", amount, recipient)
	fmt.Printf("Transaction: %s\n", t.Hash())
	fmt.Printf("Reward:      %s\n", adm.Reward)
}

// ── Key management ──────────────────────────────────────────────────────

func cmdKeygen(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	name := fs.String("name", "default", "Wallet name")
	doImport := fs.Bool("import", false, "Import an existing mnemonic instead of generating one")
	fs.Parse(args)

	var mnemonic string
	if *doImport {
		fmt.Fprint(os.Stderr, "Mnemonic: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fatal("read mnemonic: %v", err)
		}
		mnemonic = strings.Join(strings.Fields(line), " ")
		if !wallet.ValidateMnemonic(mnemonic) {
			fatal("invalid mnemonic")
		}
	} else {
		var err error
		mnemonic, err = wallet.GenerateMnemonic()
		if err != nil {
			fatal("generate mnemonic: %v", err)
		}
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("%v", err)
	}
	password := newPassword()

	owner, err := openKeystore(cfg).Create(*name, seed, password, wallet.DefaultParams())
	if err != nil {
		fatal("create wallet: %v", err)
	}

	if !*doImport {
		fmt.Println("Write down this mnemonic. It is the only way to recover the wallet:")
		fmt.Println()
		fmt.Printf("  %s\n", mnemonic)
		fmt.Println()
	}
	fmt.Printf("Wallet: %s\n", *name)
	fmt.Printf("Owner:  %s\n", owner)
}

func cmdWallet(cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal("usage: wallet <list|owners|new-owner|delete> [name]")
	}
	ks := openKeystore(cfg)

	switch args[0] {
	case "list":
		names, err := ks.List()
		if err != nil {
			fatal("%v", err)
		}
		if len(names) == 0 {
			fmt.Println("No wallets")
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "owners":
		name := walletArg(args)
		entries, err := ks.Owners(name)
		if err != nil {
			fatal("%v", err)
		}
		for _, e := range entries {
			fmt.Printf("  m/44'/8888'/%d'/0/%d  %s\n", e.Account, e.Index, e.Owner)
		}
	case "new-owner":
		name := walletArg(args)
		password, err := readPassword("Password: ")
		if err != nil {
			fatal("read password: %v", err)
		}
		owner, err := ks.NewOwner(name, password)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Owner: %s\n", owner)
	case "delete":
		if err := ks.Delete(walletArg(args)); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Deleted")
	default:
		fatal("unknown wallet command: %s", args[0])
	}
}

func walletArg(args []string) string {
	if len(args) < 2 {
		fatal("usage: wallet %s <name>", args[0])
	}
	return args[1]
}

func openKeystore(cfg *config.Config) *wallet.Keystore {
	ks, err := wallet.NewKeystore(keystoreDir(cfg))
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

// walletSigners unlocks name and derives a key for every owner it records.
func walletSigners(cfg *config.Config, name string) map[types.PublicKey]crypto.Signer {
	ks := openKeystore(cfg)
	entries, err := ks.Owners(name)
	if err != nil {
		fatal("%v", err)
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := ks.Load(name, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("%v", err)
	}
	signers := make(map[types.PublicKey]crypto.Signer, len(entries))
	for _, e := range entries {
		node, err := master.DeriveOwner(e.Account, e.Index)
		if err != nil {
			fatal("derive key: %v", err)
		}
		key, err := node.Signer()
		if err != nil {
			fatal("derive key: %v", err)
		}
		signers[key.Owner()] = key
	}
	return signers
}

func parseKey(s string) *crypto.PrivateKey {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		fatal("invalid key hex: %v", err)
	}
	key, err := crypto.PrivateKeyFromBytes(b)
	if err != nil {
		fatal("invalid key: %v", err)
	}
	return key
}

func newPassword() []byte {
	password, err := readPassword("New password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	if len(password) == 0 {
		fatal("password must not be empty")
	}
	return password
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	if active != nil {
		active.close()
	}
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
