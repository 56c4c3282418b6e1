package crypto

import (
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func TestComputeMerkleRoot_Empty(t *testing.T) {
	if root := ComputeMerkleRoot(nil); !root.IsZero() {
		t.Errorf("empty input should return zero hash, got %s", root)
	}
}

func TestComputeMerkleRoot_SingleHash(t *testing.T) {
	h := Hash([]byte("single output"))
	if root := ComputeMerkleRoot([]types.Hash{h}); root != h {
		t.Errorf("single hash should return itself: got %s, want %s", root, h)
	}
}

func TestComputeMerkleRoot_ThreeHashes(t *testing.T) {
	h1 := Hash([]byte("o1"))
	h2 := Hash([]byte("o2"))
	h3 := Hash([]byte("o3"))

	root := ComputeMerkleRoot([]types.Hash{h1, h2, h3})

	// h3 is duplicated: [h1, h2, h3, h3].
	want := HashConcat(HashConcat(h1, h2), HashConcat(h3, h3))
	if root != want {
		t.Errorf("three hashes: got %s, want %s", root, want)
	}
}

func TestComputeMerkleRoot_DoesNotMutateInput(t *testing.T) {
	in := []types.Hash{Hash([]byte("a")), Hash([]byte("b")), Hash([]byte("c"))}
	orig := make([]types.Hash, len(in))
	copy(orig, in)

	ComputeMerkleRoot(in)
	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("input[%d] was modified", i)
		}
	}
}
