package demo

import (
	"context"
	"testing"

	"github.com/sharedmap/kernel/pkg/mapkernel"
	"github.com/sharedmap/kernel/pkg/valueenc"
)

func mustWireValue(t *testing.T, v any) valueenc.SerializedValue {
	t.Helper()
	lv, err := valueenc.FromUser(v, nil)
	if err != nil {
		t.Fatalf("FromUser: %v", err)
	}
	wire, err := valueenc.ToWire(lv, nil)
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	return wire
}

// step pops the next enqueued envelope and delivers it synchronously,
// so these tests don't race against Sequencer.Run's own goroutine.
func step(t *testing.T, s *Sequencer) {
	t.Helper()
	select {
	case raw := <-s.incoming:
		s.deliver(context.Background(), raw)
	default:
		t.Fatalf("expected a pending envelope, found none")
	}
}

func TestDemo_BackPressureOnRemoteSet(t *testing.T) {
	s := NewSequencer(nil)
	k1 := mapkernel.New(mapkernel.Config{})
	k2 := mapkernel.New(mapkernel.Config{})
	s.Attach("c1", k1)
	s.Attach("c2", k2)

	// Enqueue c2's remote set directly, ahead of c1's own submission, so
	// it is delivered before c1's own ack — matching the scenario's
	// literal ordering (local set, then remote set arrives, then ack).
	raw, err := Marshal(Envelope{ClientID: "c2", ClientSeq: 0, Op: mapkernel.Op{
		Type: mapkernel.OpSet, Key: "x", Value: mustWireValue(t, 2),
	}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s.enqueue(raw)

	if err := k1.Set("x", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	step(t, s) // delivers c2's set("x", 2) to both; c1 has a pending write for x

	lv, _ := k1.Get("x")
	if string(lv.Plain) != "1" {
		t.Fatalf("k1.Get(x) = %s, want 1 (local pending write shields remote delta)", lv.Plain)
	}

	step(t, s) // delivers c1's own set("x", 1) ack back to both
	if lv, _ := k1.Get("x"); string(lv.Plain) != "1" {
		t.Fatalf("k1.Get(x) after own ack = %s, want 1", lv.Plain)
	}
}

func TestDemo_ClearShieldsRemoteDeltas(t *testing.T) {
	s := NewSequencer(nil)
	k1 := mapkernel.New(mapkernel.Config{})
	k2 := mapkernel.New(mapkernel.Config{})
	s.Attach("c1", k1)
	s.Attach("c2", k2)

	// c2's set is enqueued first so it is sequenced ahead of c1's own
	// clear, matching the scenario's literal ordering: local clear
	// issued, then a remote set arrives, then the clear ack arrives.
	if err := k2.Set("y", 9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := k1.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	step(t, s) // delivers c2's set("y", 9)
	if k1.Has("y") {
		t.Fatalf("expected pending clear to shield the remote set")
	}

	step(t, s) // delivers c1's own clear ack
	if len(k1.Keys()) != 0 {
		t.Fatalf("expected store to remain empty after the clear ack")
	}
}

func TestDemo_ClearExceptPending(t *testing.T) {
	s := NewSequencer(nil)
	k1 := mapkernel.New(mapkernel.Config{})
	k2 := mapkernel.New(mapkernel.Config{})
	s.Attach("c1", k1)
	s.Attach("c2", k2)

	if err := k1.Set("a", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	step(t, s) // a=1 acked on both replicas

	// Enqueue c2's clear first so it is delivered ahead of b's own
	// pending ack (the channel is strict FIFO by enqueue order, not by
	// when each op was locally applied); b is still set locally, and
	// still pending, by the time the clear is processed.
	if err := k2.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := k1.Set("b", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	step(t, s) // delivers c2's clear

	keys := k1.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("Keys() after clear-except-pending = %v, want [b]", keys)
	}
	lv, ok := k1.Get("b")
	if !ok || string(lv.Plain) != "2" {
		t.Fatalf("Get(b) = (%+v, %v), want (2, true)", lv, ok)
	}
}

func TestDemo_ResubmitOnReconnect(t *testing.T) {
	s := NewSequencer(nil)
	k1 := mapkernel.New(mapkernel.Config{})
	tr := s.Attach("c1", k1)

	if err := k1.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Drain the submitted envelope without delivering it: simulates the
	// connection dropping before the sequencer saw it.
	<-s.incoming

	cl := tr.(*client)
	cl.mu.Lock()
	meta := cl.pendingMeta[0]
	cl.mu.Unlock()

	handled, err := k1.TrySubmit(mapkernel.Op{Type: mapkernel.OpSet, Key: "k"}, meta)
	if err != nil {
		t.Fatalf("TrySubmit: %v", err)
	}
	if !handled {
		t.Fatalf("expected TrySubmit to report handled")
	}

	// The resubmit should have pushed a fresh envelope.
	select {
	case raw := <-s.incoming:
		env, err := Unmarshal(raw)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if env.ClientSeq != 1 {
			t.Fatalf("expected the resubmit to use a fresh client sequence number, got %d", env.ClientSeq)
		}
	default:
		t.Fatalf("expected the resubmit to enqueue a new envelope")
	}
}
