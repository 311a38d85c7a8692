package events

import "testing"

func TestEmitter_ValueChanged(t *testing.T) {
	e := NewEmitter()
	var got []ValueChangedEvent
	e.OnValueChanged(func(ev ValueChangedEvent) { got = append(got, ev) })

	e.EmitValueChanged(ValueChangedEvent{Key: "a", Local: true})
	e.EmitValueChanged(ValueChangedEvent{Key: "b", Local: false})

	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "b" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter()
	calls := 0
	unsub := e.OnValueChanged(func(ValueChangedEvent) { calls++ })

	e.EmitValueChanged(ValueChangedEvent{Key: "a"})
	unsub()
	e.EmitValueChanged(ValueChangedEvent{Key: "b"})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestEmitter_Clear(t *testing.T) {
	e := NewEmitter()
	var got []ClearEvent
	e.OnClear(func(ev ClearEvent) { got = append(got, ev) })

	e.EmitClear(ClearEvent{Local: true})

	if len(got) != 1 || !got[0].Local {
		t.Fatalf("unexpected clear events: %+v", got)
	}
}

func TestEmitter_MultipleListenersIndependentUnsubscribe(t *testing.T) {
	e := NewEmitter()
	var a, b int
	unsubA := e.OnValueChanged(func(ValueChangedEvent) { a++ })
	e.OnValueChanged(func(ValueChangedEvent) { b++ })

	unsubA()
	e.EmitValueChanged(ValueChangedEvent{})

	if a != 0 || b != 1 {
		t.Fatalf("a=%d b=%d, want a=0 b=1", a, b)
	}
}
