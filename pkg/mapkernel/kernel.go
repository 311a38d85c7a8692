// Package mapkernel is the C4 component: the replicated map kernel
// itself. It owns the store, the pending-op bookkeeping, the optional
// attribution index, and the event surface, and reconciles inbound
// sequenced messages against locally submitted-but-unacknowledged ops.
//
// Per the concurrency model it assumes a single-threaded cooperative
// caller: all public methods run to completion without suspension and
// there is no internal locking. Callers driving the kernel from
// multiple goroutines (as pkg/demo's sequencer fan-out does) must
// serialize their own calls into each kernel instance.
package mapkernel

import (
	"github.com/sharedmap/kernel/pkg/attribution"
	kernelerrors "github.com/sharedmap/kernel/pkg/errors"
	"github.com/sharedmap/kernel/pkg/events"
	"github.com/sharedmap/kernel/pkg/pending"
	"github.com/sharedmap/kernel/pkg/valueenc"
)

// Config configures a Kernel at construction time.
type Config struct {
	// Attribution enables the key -> sequence-number index.
	Attribution bool
	// Serializer resolves Shared-kind values; nil means every value
	// handled by this kernel is Plain.
	Serializer valueenc.Serializer
}

// Kernel is one client's in-memory replica of the map.
type Kernel struct {
	store     *orderedStore
	pending   *pending.Tracker
	attrib    *attribution.Index
	events    *events.Emitter
	transport Transport
	ser       valueenc.Serializer

	poisonErr error
}

// New returns an unattached Kernel ready for local use.
func New(cfg Config) *Kernel {
	return &Kernel{
		store:   newOrderedStore(),
		pending: pending.NewTracker(),
		attrib:  attribution.NewIndex(cfg.Attribution),
		events:  events.NewEmitter(),
		ser:     cfg.Serializer,
	}
}

// Attach wires a transport. Until Attach is called (or the attached
// transport reports IsAttached() == false), local mutations never
// allocate pending ids or submit ops.
func (k *Kernel) Attach(t Transport) {
	k.transport = t
}

// Events exposes the kernel's event surface for subscribing.
func (k *Kernel) Events() *events.Emitter {
	return k.events
}

// Poisoned reports whether an invariant violation or a usage error has
// left the kernel unusable.
func (k *Kernel) Poisoned() bool {
	return k.poisonErr != nil
}

func (k *Kernel) checkPoisoned() error {
	if k.poisonErr != nil {
		return &kernelerrors.PoisonedError{Cause: k.poisonErr}
	}
	return nil
}

// poison records err as the cause of the kernel's failure, keeping the
// first one raised.
func (k *Kernel) poison(err error) error {
	if k.poisonErr == nil {
		k.poisonErr = err
	}
	return &kernelerrors.PoisonedError{Cause: k.poisonErr}
}

func (k *Kernel) attached() bool {
	return k.transport != nil && k.transport.IsAttached()
}

// Get returns the current value for key, if any.
func (k *Kernel) Get(key string) (valueenc.LocalValue, bool) {
	return k.store.get(key)
}

// Has reports whether key currently has a value.
func (k *Kernel) Has(key string) bool {
	return k.store.has(key)
}

// Keys returns every key in insertion order as of this call.
func (k *Kernel) Keys() []string {
	return k.store.keys()
}

// Values returns every value, ordered the same way as Keys.
func (k *Kernel) Values() []valueenc.LocalValue {
	entries := k.store.entries()
	out := make([]valueenc.LocalValue, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Entries returns every key/value pair in insertion order.
func (k *Kernel) Entries() []KV {
	return k.store.entries()
}

// ForEach visits every key/value pair in insertion order.
func (k *Kernel) ForEach(fn func(key string, v valueenc.LocalValue)) {
	k.store.forEach(fn)
}

// Set inserts or overwrites key locally and, if attached, submits the op.
func (k *Kernel) Set(key string, userValue any) error {
	if err := k.checkPoisoned(); err != nil {
		return err
	}
	if key == "" {
		return &kernelerrors.InvalidKeyError{Key: key}
	}

	lv, err := valueenc.FromUser(userValue, k.ser)
	if err != nil {
		return err
	}

	previous, existed := k.store.set(key, lv)

	var prevPtr *valueenc.LocalValue
	if existed {
		prevPtr = &previous
	}
	k.events.EmitValueChanged(events.ValueChangedEvent{Key: key, PreviousValue: prevPtr, Local: true})

	if !k.attached() {
		return nil
	}

	wire, err := valueenc.ToWire(lv, k.ser)
	if err != nil {
		return err
	}

	id := k.pending.NextID()
	k.pending.PushKey(key, id)

	meta := OpMetadata{Kind: MetaAdd, ID: id, Key: key}
	if existed {
		meta = OpMetadata{Kind: MetaEdit, ID: id, Key: key, PreviousValue: prevPtr}
	}
	k.transport.Submit(Op{Type: OpSet, Key: key, Value: wire}, meta)
	return nil
}

// Delete removes key locally and, if attached, submits the op. It
// reports whether the key existed before the call.
func (k *Kernel) Delete(key string) (existed bool, err error) {
	if err := k.checkPoisoned(); err != nil {
		return false, err
	}
	if key == "" {
		return false, &kernelerrors.InvalidKeyError{Key: key}
	}

	previous, existed := k.store.delete(key)
	var prevPtr *valueenc.LocalValue
	if existed {
		prevPtr = &previous
		k.events.EmitValueChanged(events.ValueChangedEvent{Key: key, PreviousValue: prevPtr, Local: true})
	}

	if !k.attached() {
		return existed, nil
	}

	id := k.pending.NextID()
	k.pending.PushKey(key, id)
	k.transport.Submit(Op{Type: OpDelete, Key: key}, OpMetadata{Kind: MetaEdit, ID: id, Key: key, PreviousValue: prevPtr})
	return existed, nil
}

// Clear empties the store locally and, if attached, submits a clear
// carrying a snapshot of the prior contents for rollback.
func (k *Kernel) Clear() error {
	if err := k.checkPoisoned(); err != nil {
		return err
	}

	snapshot := k.store.entries()
	k.store.clear()
	k.events.EmitClear(events.ClearEvent{Local: true})

	if !k.attached() {
		return nil
	}

	id := k.pending.NextID()
	k.pending.PushClear(id)
	k.transport.Submit(Op{Type: OpClear}, OpMetadata{Kind: MetaClear, ID: id, PreviousMap: snapshot})
	return nil
}

// GetAttribution returns the attribution for key, if tracking is
// enabled and the key has one.
func (k *Kernel) GetAttribution(key string) (attribution.Attribution, bool) {
	return k.attrib.Get(key)
}

// GetAllAttribution returns a snapshot of the whole attribution index.
func (k *Kernel) GetAllAttribution() map[string]attribution.Attribution {
	return k.attrib.All()
}
