package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key and signature sizes.
const (
	PublicKeySize = 32 // x-only secp256k1 public key
	SignatureSize = 64 // Schnorr signature (r || s)
)

// PublicKey is the 256-bit owner identifier locking an output: the X
// coordinate of an even-Y secp256k1 public key.
type PublicKey [PublicKeySize]byte

// Signature is a detached 512-bit Schnorr signature.
type Signature [SignatureSize]byte

// IsZero returns true if the key is all zeros.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// String returns the hex-encoded key.
func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalJSON encodes the key as a hex string.
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a hex string into a key.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HexToPublicKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// HexToPublicKey parses a 64-character hex string into a PublicKey.
func HexToPublicKey(s string) (PublicKey, error) {
	var k PublicKey
	if err := decodeFixedHex(s, k[:]); err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key: %w", err)
	}
	return k, nil
}

// IsZero returns true if the signature is all zeros (unsigned).
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// String returns the hex-encoded signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalJSON encodes the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string into a signature.
// An empty string decodes to the zero signature.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*s = Signature{}
		return nil
	}
	var sig Signature
	if err := decodeFixedHex(str, sig[:]); err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	*s = sig
	return nil
}
