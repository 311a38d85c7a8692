package rangemap

import "testing"

func TestSetInRange_Basic(t *testing.T) {
	m := New()
	m.SetInRange(10, 5, "a")

	v, length := m.GetFromRange(10, 5)
	if v != "a" || length != 5 {
		t.Fatalf("GetFromRange = (%v, %d), want (a, 5)", v, length)
	}
}

func TestGetFromRange_Gap(t *testing.T) {
	m := New()
	m.SetInRange(10, 5, "a")

	v, length := m.GetFromRange(0, 10)
	if v != nil || length != 10 {
		t.Fatalf("GetFromRange(0,10) = (%v, %d), want (nil, 10)", v, length)
	}
}

func TestGetFromRange_EmptyMap(t *testing.T) {
	m := New()
	v, length := m.GetFromRange(0, 100)
	if v != nil || length != 100 {
		t.Fatalf("GetFromRange on empty map = (%v, %d), want (nil, 100)", v, length)
	}
}

func TestSetInRange_SplitsContainingEntry(t *testing.T) {
	m := New()
	m.SetInRange(0, 20, "a")
	m.SetInRange(5, 5, "b")

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries() = %v, want 3 entries", entries)
	}
	want := []Entry{
		{Start: 0, Length: 5, Value: "a"},
		{Start: 5, Length: 5, Value: "b"},
		{Start: 10, Length: 10, Value: "a"},
	}
	for i, e := range want {
		if entries[i] != e {
			t.Fatalf("entries[%d] = %+v, want %+v", i, entries[i], e)
		}
	}
}

func TestSetInRange_TrimsLeftAndRight(t *testing.T) {
	m := New()
	m.SetInRange(0, 10, "a")
	m.SetInRange(10, 10, "b")
	m.SetInRange(5, 10, "c")

	entries := m.Entries()
	want := []Entry{
		{Start: 0, Length: 5, Value: "a"},
		{Start: 5, Length: 10, Value: "c"},
		{Start: 15, Length: 5, Value: "b"},
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestSetInRange_NilValueDeletes(t *testing.T) {
	m := New()
	m.SetInRange(0, 10, "a")
	m.SetInRange(2, 5, nil)

	entries := m.Entries()
	want := []Entry{
		{Start: 0, Length: 2, Value: "a"},
		{Start: 7, Length: 3, Value: "a"},
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() = %+v, want %+v", entries, want)
	}
}

func TestDeleteFromRange_FullOverlapRemoves(t *testing.T) {
	m := New()
	m.SetInRange(0, 10, "a")
	m.DeleteFromRange(0, 10)

	if entries := m.Entries(); len(entries) != 0 {
		t.Fatalf("Entries() = %+v, want empty", entries)
	}
}

func TestDeleteFromRange_SplitsContaining(t *testing.T) {
	m := New()
	m.SetInRange(0, 20, "a")
	m.DeleteFromRange(5, 5)

	entries := m.Entries()
	want := []Entry{
		{Start: 0, Length: 5, Value: "a"},
		{Start: 10, Length: 10, Value: "a"},
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestGetFirstEntryFromRange(t *testing.T) {
	m := New()
	m.SetInRange(10, 5, "a")
	m.SetInRange(20, 5, "b")

	e, ok := m.GetFirstEntryFromRange(0, 100)
	if !ok || e.Start != 10 || e.Value != "a" {
		t.Fatalf("GetFirstEntryFromRange = (%+v, %v), want start=10 value=a", e, ok)
	}

	_, ok = m.GetFirstEntryFromRange(15, 5)
	if ok {
		t.Fatalf("expected no entry intersecting the gap [15,20)")
	}
}

func TestString_RendersSpans(t *testing.T) {
	m := New()
	m.SetInRange(0, 5, "a")
	if got, want := m.String(), "[0,5)=a"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
