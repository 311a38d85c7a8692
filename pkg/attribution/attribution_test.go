package attribution

import "testing"

func TestIndex_DisabledDiscardsWrites(t *testing.T) {
	idx := NewIndex(false)
	idx.Set("a", 5)

	if idx.Enabled() {
		t.Fatalf("expected disabled index")
	}
	if _, ok := idx.Get("a"); ok {
		t.Fatalf("expected disabled index to discard Set")
	}
	if all := idx.All(); len(all) != 0 {
		t.Fatalf("expected empty All(), got %v", all)
	}
}

func TestIndex_SetGetDelete(t *testing.T) {
	idx := NewIndex(true)
	idx.Set("a", 7)

	got, ok := idx.Get("a")
	if !ok || got.Seq != 7 {
		t.Fatalf("Get(a) = (%v, %v), want (7, true)", got, ok)
	}

	idx.Delete("a")
	if _, ok := idx.Get("a"); ok {
		t.Fatalf("expected a to be gone after Delete")
	}
}

func TestIndex_Clear(t *testing.T) {
	idx := NewIndex(true)
	idx.Set("a", 1)
	idx.Set("b", 2)

	idx.Clear()
	if all := idx.All(); len(all) != 0 {
		t.Fatalf("expected empty index after Clear, got %v", all)
	}
}

func TestIndex_AllIsSnapshot(t *testing.T) {
	idx := NewIndex(true)
	idx.Set("a", 1)

	all := idx.All()
	all["a"] = Attribution{Seq: 99}

	got, _ := idx.Get("a")
	if got.Seq != 1 {
		t.Fatalf("mutating All() result leaked into index: got seq %d, want 1", got.Seq)
	}
}
