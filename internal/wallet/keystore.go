package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Keystore errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
)

const walletExt = ".wallet"

// keystoreFile is the on-disk JSON format of one wallet.
type keystoreFile struct {
	Version       int          `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	EncryptedSeed []byte       `json:"encrypted_seed"`
	Owners        []OwnerEntry `json:"owners"`
}

// OwnerEntry records a derived owner key. Only public data is stored.
type OwnerEntry struct {
	Account uint32          `json:"account"`
	Index   uint32          `json:"index"`
	Owner   types.PublicKey `json:"owner"`
}

// Keystore keeps encrypted wallet seeds in a directory.
type Keystore struct {
	dir string
}

// NewKeystore opens the keystore at dir, creating it if needed.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) path(name string) string {
	return filepath.Join(ks.dir, name+walletExt)
}

// Create stores seed encrypted under password and records the owner at
// account 0, index 0.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) (types.PublicKey, error) {
	path := ks.path(name)
	if _, err := os.Stat(path); err == nil {
		return types.PublicKey{}, fmt.Errorf("%w: %s", ErrWalletExists, name)
	}

	first, err := ownerAt(seed, 0, 0)
	if err != nil {
		return types.PublicKey{}, err
	}
	sealed, err := Encrypt(seed, password, params)
	if err != nil {
		return types.PublicKey{}, fmt.Errorf("encrypt seed: %w", err)
	}

	kf := &keystoreFile{
		Version:       1,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: sealed,
		Owners:        []OwnerEntry{{Owner: first}},
	}
	if err := ks.write(path, kf); err != nil {
		return types.PublicKey{}, err
	}
	return first, nil
}

// Load decrypts and returns the seed of a wallet.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}
	return seed, nil
}

// NewOwner derives the next owner key of account 0 and records it.
func (ks *Keystore) NewOwner(name string, password []byte) (types.PublicKey, error) {
	kf, err := ks.read(name)
	if err != nil {
		return types.PublicKey{}, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return types.PublicKey{}, fmt.Errorf("decrypt wallet: %w", err)
	}
	defer wipe(seed)

	index := uint32(len(kf.Owners))
	owner, err := ownerAt(seed, 0, index)
	if err != nil {
		return types.PublicKey{}, err
	}
	kf.Owners = append(kf.Owners, OwnerEntry{Index: index, Owner: owner})
	if err := ks.write(ks.path(name), kf); err != nil {
		return types.PublicKey{}, err
	}
	return owner, nil
}

// Owners returns the recorded owners of a wallet.
func (ks *Keystore) Owners(name string) ([]OwnerEntry, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	return kf.Owners, nil
}

// List returns the names of all wallets, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), walletExt) {
			names = append(names, strings.TrimSuffix(e.Name(), walletExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	if err := os.Remove(ks.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, name)
		}
		return err
	}
	return nil
}

func ownerAt(seed []byte, account, index uint32) (types.PublicKey, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return types.PublicKey{}, err
	}
	node, err := master.DeriveOwner(account, index)
	if err != nil {
		return types.PublicKey{}, err
	}
	signer, err := node.Signer()
	if err != nil {
		return types.PublicKey{}, err
	}
	defer signer.Zero()
	return signer.Owner(), nil
}

func (ks *Keystore) write(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) read(name string) (*keystoreFile, error) {
	data, err := os.ReadFile(ks.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
		}
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
