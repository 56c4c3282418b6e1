package utxo

import (
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func TestCommitment_Empty(t *testing.T) {
	store := NewStore(storage.NewMemory())

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if !root.IsZero() {
		t.Error("empty store commitment should be zero hash")
	}
}

func TestCommitment_SingleUTXO(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Insert(makeUTXO("tx1", 1000, types.PublicKey{0xaa}))

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if root.IsZero() {
		t.Error("single UTXO commitment should not be zero")
	}
}

func TestCommitment_OrderIndependent(t *testing.T) {
	a := makeUTXO("a", 1, types.PublicKey{0xaa})
	b := makeUTXO("b", 2, types.PublicKey{0xbb})
	c := makeUTXO("c", 3, types.PublicKey{0xcc})

	s1 := NewStore(storage.NewMemory())
	s1.Insert(a)
	s1.Insert(b)
	s1.Insert(c)

	s2 := NewStore(storage.NewMemory())
	s2.Insert(c)
	s2.Insert(a)
	s2.Insert(b)

	r1, _ := Commitment(s1)
	r2, _ := Commitment(s2)
	if r1 != r2 {
		t.Error("commitment should not depend on insertion order")
	}
}

func TestCommitment_ChangesOnModification(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Insert(makeUTXO("a", 1, types.PublicKey{0xaa}))
	before, _ := Commitment(store)

	store.Insert(makeUTXO("b", 1, types.PublicKey{0xaa}))
	after, _ := Commitment(store)
	if before == after {
		t.Error("commitment should change when a UTXO is added")
	}

	store.Remove(makeID("b"))
	restored, _ := Commitment(store)
	if restored != before {
		t.Error("commitment should return to the earlier root after removal")
	}
}

func TestHashUTXO_DifferentValues(t *testing.T) {
	u1 := makeUTXO("a", 1, types.PublicKey{0xaa})
	u2 := makeUTXO("a", 2, types.PublicKey{0xaa})
	if hashUTXO(u1) == hashUTXO(u2) {
		t.Error("different values should hash differently")
	}
	u3 := makeUTXO("a", 1, types.PublicKey{0xab})
	if hashUTXO(u1) == hashUTXO(u3) {
		t.Error("different owners should hash differently")
	}
}

func TestForEach(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Insert(makeUTXO("a", 1, types.PublicKey{0xaa}))
	store.Insert(makeUTXO("b", 2, types.PublicKey{0xaa}))

	var prev types.Hash
	count := 0
	err := store.ForEach(func(u *UTXO) error {
		if count > 0 && !prev.Less(u.ID) {
			t.Error("ForEach should visit ids in ascending order")
		}
		prev = u.ID
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if count != 2 {
		t.Errorf("ForEach visited %d, want 2", count)
	}
}
