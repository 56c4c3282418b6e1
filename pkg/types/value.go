package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"lukechampine.com/uint128"
)

// ValueSize is the canonical encoded width of a Value in bytes.
const ValueSize = 16

// Value is an unsigned 128-bit amount. Every arithmetic operation is
// checked: overflow and underflow are reported, never wrapped.
type Value struct {
	u uint128.Uint128
}

// NewValue returns v as a Value.
func NewValue(v uint64) Value {
	return Value{u: uint128.From64(v)}
}

// MaxValue returns the largest representable Value.
func MaxValue() Value {
	return Value{u: uint128.Max}
}

// ValueFromBytes decodes a 16-byte little-endian value.
func ValueFromBytes(b []byte) (Value, error) {
	if len(b) != ValueSize {
		return Value{}, fmt.Errorf("value must be %d bytes, got %d", ValueSize, len(b))
	}
	return Value{u: uint128.FromBytes(b)}, nil
}

// ParseValue parses a base-10 string into a Value.
func ParseValue(s string) (Value, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Value{}, fmt.Errorf("invalid value %q", s)
	}
	if i.Sign() < 0 {
		return Value{}, fmt.Errorf("value %q is negative", s)
	}
	if i.BitLen() > 128 {
		return Value{}, fmt.Errorf("value %q overflows 128 bits", s)
	}
	return Value{u: uint128.FromBig(i)}, nil
}

// IsZero returns true if the value is zero.
func (v Value) IsZero() bool {
	return v.u.IsZero()
}

// Cmp compares v and o and returns -1, 0 or +1.
func (v Value) Cmp(o Value) int {
	return v.u.Cmp(o.u)
}

// Add returns v+o. ok is false on overflow.
func (v Value) Add(o Value) (sum Value, ok bool) {
	s := v.u.AddWrap(o.u)
	if s.Cmp(v.u) < 0 {
		return Value{}, false
	}
	return Value{u: s}, true
}

// Sub returns v-o. ok is false on underflow.
func (v Value) Sub(o Value) (diff Value, ok bool) {
	if v.u.Cmp(o.u) < 0 {
		return Value{}, false
	}
	return Value{u: v.u.Sub(o.u)}, true
}

// Mul64 returns v*n. ok is false on overflow.
func (v Value) Mul64(n uint64) (product Value, ok bool) {
	if n == 0 || v.IsZero() {
		return Value{}, true
	}
	limit, _ := uint128.Max.QuoRem64(n)
	if v.u.Cmp(limit) > 0 {
		return Value{}, false
	}
	return Value{u: v.u.Mul64(n)}, true
}

// QuoRem64 returns floor(v/n) and v mod n. It panics if n is zero.
func (v Value) QuoRem64(n uint64) (Value, uint64) {
	q, r := v.u.QuoRem64(n)
	return Value{u: q}, r
}

// Rsh returns v >> n.
func (v Value) Rsh(n uint) Value {
	return Value{u: v.u.Rsh(n)}
}

// Uint64 returns v as a uint64. ok is false if v does not fit.
func (v Value) Uint64() (n uint64, ok bool) {
	if v.u.Hi != 0 {
		return 0, false
	}
	return v.u.Lo, true
}

// AppendBytes appends the 16-byte little-endian encoding of v to buf.
func (v Value) AppendBytes(buf []byte) []byte {
	var b [ValueSize]byte
	v.u.PutBytes(b[:])
	return append(buf, b[:]...)
}

// String returns the base-10 representation of v.
func (v Value) String() string {
	return v.u.String()
}

// MarshalJSON encodes the value as a decimal string so 128-bit amounts
// survive JSON consumers limited to float64.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON integer.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseValue(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
