// Command kernelbench drives the kernel's seven literal end-to-end
// scenarios against real pkg/demo and pkg/rangemap wiring, printing the
// state the invariants in the testable-properties section describe.
//
// It's meant to be read, not benchmarked despite the name: a runnable
// script over the same paths the package tests exercise in isolation,
// the way the corpus's examples/ mains narrate a storage engine's CRUD
// path end to end.
package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/sharedmap/kernel/pkg/demo"
	"github.com/sharedmap/kernel/pkg/kernellog"
	"github.com/sharedmap/kernel/pkg/mapkernel"
	"github.com/sharedmap/kernel/pkg/rangemap"
)

// log is the sequencer's logger for the whole run; -v switches it from
// a no-op logger to the development config kernellog.New builds.
var log = zap.NewNop()

func main() {
	verbose := flag.Bool("v", false, "enable debug-level kernel logging")
	flag.Parse()
	if *verbose {
		log = kernellog.New()
	}

	fmt.Println("=== 1. Back-pressure on remote set ===")
	scenarioBackPressure()

	fmt.Println("\n=== 2. Clear shields remote deltas ===")
	scenarioClearShields()

	fmt.Println("\n=== 3. Clear-except-pending ===")
	scenarioClearExceptPending()

	fmt.Println("\n=== 4. Rollback set-add ===")
	scenarioRollbackAdd()

	fmt.Println("\n=== 5. Rollback set-edit ===")
	scenarioRollbackEdit()

	fmt.Println("\n=== 6. Resubmit on reconnect ===")
	scenarioResubmit()

	fmt.Println("\n=== 7. Range-map split ===")
	scenarioRangeMapSplit()
}

// step pops and delivers exactly one enqueued envelope, the way the
// demo package's own tests drive the sequencer deterministically.
func step(s *demo.Sequencer) {
	if !s.Step(context.Background()) {
		fmt.Println("(no pending envelope)")
	}
}

func scenarioBackPressure() {
	s := demo.NewSequencer(log)
	k1 := mapkernel.New(mapkernel.Config{})
	k2 := mapkernel.New(mapkernel.Config{})
	s.Attach("replica-1", k1)
	s.Attach("replica-2", k2)

	// Enqueue replica-2's remote delta first so it is sequenced ahead of
	// replica-1's own ack, matching the scenario's literal order: local
	// set issued, remote set arrives next, then the local ack arrives.
	if err := k2.Set("x", 2); err != nil {
		fmt.Printf("set(x,2) failed: %v\n", err)
		return
	}
	if err := k1.Set("x", 1); err != nil {
		fmt.Printf("set(x,1) failed: %v\n", err)
		return
	}

	step(s) // delivers replica-2's remote set(x,2); shielded by replica-1's pending write
	lv, _ := k1.Get("x")
	fmt.Printf("after remote set(x,2) arrives: x=%s\n", lv.Plain)

	step(s) // delivers replica-1's own set(x,1) ack
	lv, _ = k1.Get("x")
	fmt.Printf("after own ack arrives: x=%s\n", lv.Plain)
}

func scenarioClearShields() {
	s := demo.NewSequencer(log)
	k1 := mapkernel.New(mapkernel.Config{})
	k2 := mapkernel.New(mapkernel.Config{})
	s.Attach("replica-1", k1)
	s.Attach("replica-2", k2)

	// Enqueue replica-2's set first so it is sequenced ahead of
	// replica-1's own clear ack, matching the literal order: local clear
	// issued, remote set arrives next, then the clear ack arrives.
	if err := k2.Set("y", 9); err != nil {
		fmt.Printf("set(y,9) failed: %v\n", err)
		return
	}
	if err := k1.Clear(); err != nil {
		fmt.Printf("clear() failed: %v\n", err)
		return
	}

	step(s) // delivers replica-2's remote set(y,9); shielded by replica-1's pending clear
	fmt.Printf("keys while clear is still pending: %v\n", k1.Keys())

	step(s) // delivers replica-1's own clear ack
	fmt.Printf("keys after clear ack: %v\n", k1.Keys())
}

func scenarioClearExceptPending() {
	s := demo.NewSequencer(log)
	k1 := mapkernel.New(mapkernel.Config{})
	k2 := mapkernel.New(mapkernel.Config{})
	s.Attach("replica-1", k1)
	s.Attach("replica-2", k2)

	k1.Set("a", 1)
	step(s) // a=1 acked everywhere

	// Enqueue the clear first so it is delivered ahead of b's own
	// pending ack; b is still set locally, and still pending, by the
	// time the clear is processed.
	k2.Clear()
	k1.Set("b", 2) // left pending
	step(s)        // delivers replica-2's clear

	fmt.Printf("keys after clear-except-pending: %v\n", k1.Keys())
}

func scenarioRollbackAdd() {
	// Rollback pops from the back of the pending list, so it needs the
	// metadata the kernel actually built for the submitted op: an
	// unattached kernel never allocates a pending id at all, and a
	// hand-picked id would assert against whatever the tracker really
	// issued. Attach a real transport and use what it captured.
	s := demo.NewSequencer(log)
	k := mapkernel.New(mapkernel.Config{})
	s.Attach("replica-1", k)

	if err := k.Set("k", 7); err != nil {
		fmt.Printf("set(k,7) failed: %v\n", err)
		return
	}

	env, meta, ok := s.DropOldest("replica-1")
	if !ok {
		fmt.Println("expected a pending envelope to drop")
		return
	}

	if err := k.Rollback(env.Op, meta); err != nil {
		fmt.Printf("rollback failed: %v\n", err)
		return
	}
	fmt.Printf("has(k) after rollback: %v\n", k.Has("k"))
}

func scenarioRollbackEdit() {
	s := demo.NewSequencer(log)
	k := mapkernel.New(mapkernel.Config{})
	s.Attach("replica-1", k)

	if err := k.Set("k", 1); err != nil {
		fmt.Printf("set(k,1) failed: %v\n", err)
		return
	}
	step(s) // ack k=1 so the edit below starts from acked state

	if err := k.Set("k", 2); err != nil {
		fmt.Printf("set(k,2) failed: %v\n", err)
		return
	}

	env, meta, ok := s.DropOldest("replica-1")
	if !ok {
		fmt.Println("expected a pending envelope to drop")
		return
	}

	if err := k.Rollback(env.Op, meta); err != nil {
		fmt.Printf("rollback failed: %v\n", err)
		return
	}
	lv, _ := k.Get("k")
	fmt.Printf("k after rollback: %s\n", lv.Plain)
}

func scenarioResubmit() {
	s := demo.NewSequencer(log)
	k1 := mapkernel.New(mapkernel.Config{})
	s.Attach("replica-1", k1)

	if err := k1.Set("k", "v"); err != nil {
		fmt.Printf("set(k,v) failed: %v\n", err)
		return
	}

	env, meta, ok := s.DropOldest("replica-1")
	if !ok {
		fmt.Println("expected a pending envelope to drop")
		return
	}

	handled, err := k1.TrySubmit(env.Op, meta)
	if err != nil {
		fmt.Printf("resubmit failed: %v\n", err)
		return
	}
	fmt.Printf("resubmit handled: %v\n", handled)
}

func scenarioRangeMapSplit() {
	m := rangemap.New()
	m.SetInRange(10, 5, "A")
	fmt.Printf("after setInRange(10,5,A): %s\n", m)

	m.SetInRange(12, 1, "B")
	fmt.Printf("after setInRange(12,1,B): %s\n", m)

	m.DeleteFromRange(11, 2)
	fmt.Printf("after deleteFromRange(11,2): %s\n", m)
}
