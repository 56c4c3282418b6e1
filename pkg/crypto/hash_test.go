package crypto

import (
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// BLAKE3-256 reference vectors.
func TestHash_Vectors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{"hello", "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f"},
	}
	for _, tt := range tests {
		want, err := types.HexToHash(tt.want)
		if err != nil {
			t.Fatalf("HexToHash: %v", err)
		}
		if got := Hash([]byte(tt.input)); got != want {
			t.Errorf("Hash(%q) = %s, want %s", tt.input, got, want)
		}
	}
}

func TestHash_Distinct(t *testing.T) {
	if Hash([]byte("output A")) == Hash([]byte("output B")) {
		t.Error("different inputs produced the same hash")
	}
}

func TestHashConcat(t *testing.T) {
	a := Hash([]byte("left"))
	b := Hash([]byte("right"))

	want := Hash(append(a.Bytes(), b.Bytes()...))
	if got := HashConcat(a, b); got != want {
		t.Errorf("HashConcat = %s, want hash of a||b %s", got, want)
	}
	if HashConcat(a, b) == HashConcat(b, a) {
		t.Error("HashConcat should depend on argument order")
	}
}
