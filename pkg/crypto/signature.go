package crypto

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Compressed public key prefixes.
const (
	evenYPrefix byte = 0x02
	oddYPrefix  byte = 0x03
)

// Signer signs messages on behalf of an output owner.
type Signer interface {
	// SignMessage produces a Schnorr signature over BLAKE3(message).
	SignMessage(message []byte) (types.Signature, error)
	// Owner returns the 32-byte owner identifier of the key.
	Owner() types.PublicKey
}

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
// The scalar is normalized so that its public key has an even Y coordinate;
// the X coordinate alone then identifies the owner.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

func newPrivateKey(key *secp256k1.PrivateKey) *PrivateKey {
	if key.PubKey().SerializeCompressed()[0] == oddYPrefix {
		key.Key.Negate()
	}
	return &PrivateKey{key: key}
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newPrivateKey(key), nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
// Secrets whose public key has an odd Y are negated, so two secrets map to
// each owner.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("private key is zero modulo the curve order")
	}
	return newPrivateKey(key), nil
}

// Sign produces a Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) (types.Signature, error) {
	if len(hash) != 32 {
		return types.Signature{}, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return types.Signature{}, fmt.Errorf("schnorr sign: %w", err)
	}
	var out types.Signature
	copy(out[:], sig.Serialize())
	return out, nil
}

// SignMessage signs BLAKE3(message).
func (pk *PrivateKey) SignMessage(message []byte) (types.Signature, error) {
	hash := Hash(message)
	return pk.Sign(hash[:])
}

// Owner returns the x-only public key used as the output owner.
func (pk *PrivateKey) Owner() types.PublicKey {
	var owner types.PublicKey
	copy(owner[:], pk.key.PubKey().SerializeCompressed()[1:])
	return owner
}

// Serialize returns the 32-byte (normalized) private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// Verify checks a Schnorr signature over BLAKE3(message) against an owner.
// Returns false on any parse error.
func Verify(sig types.Signature, message []byte, owner types.PublicKey) bool {
	var compressed [33]byte
	compressed[0] = evenYPrefix
	copy(compressed[1:], owner[:])

	pubKey, err := secp256k1.ParsePubKey(compressed[:])
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	hash := Hash(message)
	return parsed.Verify(hash[:], pubKey)
}
