package mapkernel

import (
	kernelerrors "github.com/sharedmap/kernel/pkg/errors"
	"github.com/sharedmap/kernel/pkg/events"
	"github.com/sharedmap/kernel/pkg/valueenc"
)

// TrySubmit resubmits a previously submitted op on transport
// reconnection, rotating its pending id. It returns handled == false
// for any op/metadata combination this kernel does not recognize,
// without mutating anything.
func (k *Kernel) TrySubmit(op Op, meta OpMetadata) (handled bool, err error) {
	if err := k.checkPoisoned(); err != nil {
		return false, err
	}

	switch {
	case op.Type != OpSet && op.Type != OpDelete && op.Type != OpClear,
		op.Type == OpClear && meta.Kind != MetaClear,
		op.Type != OpClear && meta.Kind == MetaClear,
		op.Type == OpDelete && meta.Kind == MetaAdd:
		return false, nil
	}

	switch meta.Kind {
	case MetaAdd, MetaEdit:
		if err := k.pending.PopKeyFront(meta.Key, meta.ID); err != nil {
			return false, k.poison(err)
		}
		newID := k.pending.NextID()
		k.pending.PushKey(meta.Key, newID)

		newMeta := OpMetadata{Kind: meta.Kind, ID: newID, Key: meta.Key, PreviousValue: meta.PreviousValue}
		k.transport.Submit(op, newMeta)
		return true, nil

	case MetaClear:
		if err := k.pending.PopClearFront(meta.ID); err != nil {
			return false, k.poison(err)
		}
		newID := k.pending.NextID()
		k.pending.PushClear(newID)

		newMeta := OpMetadata{Kind: MetaClear, ID: newID, PreviousMap: meta.PreviousMap}
		k.transport.Submit(op, newMeta)
		return true, nil

	default:
		return false, nil
	}
}

// TryProcess applies an inbound sequenced message, reconciling it
// against local pending state per needProcessKeyOperation. meta is the
// kernel's own metadata for the op when local == true (our own op
// coming back); it is ignored for remote ops.
func (k *Kernel) TryProcess(msg SequencedMessage, local bool, meta *OpMetadata) (handled bool, err error) {
	if err := k.checkPoisoned(); err != nil {
		return false, err
	}

	switch msg.Contents.Type {
	case OpClear:
		return true, k.processClear(msg, local, meta)
	case OpSet, OpDelete:
		return true, k.processKeyOp(msg, local, meta)
	default:
		return false, nil
	}
}

// processKeyOp implements needProcessKeyOperation (spec 4.3.3).
func (k *Kernel) processKeyOp(msg SequencedMessage, local bool, meta *OpMetadata) error {
	op := msg.Contents

	// Case 1: a clear is pending. Anything preceding it, local or
	// remote, is superseded by the clear once it lands.
	if k.pending.HasPendingClear() {
		if local {
			first, _ := k.pending.FirstPendingClear()
			if meta == nil || meta.ID >= first {
				return k.poison(&kernelerrors.InvariantViolationError{
					Reason: "local key op acknowledged out of order under a pending clear",
				})
			}
		}
		return nil
	}

	// Case 2: the key itself has pending local ids.
	if ids := k.pending.PendingIDsFor(op.Key); len(ids) > 0 {
		if !local {
			return nil
		}
		if meta == nil {
			return k.poison(&kernelerrors.InvariantViolationError{
				Reason: "local key op acknowledged with no matching metadata",
			})
		}
		if err := k.pending.PopKeyFront(op.Key, meta.ID); err != nil {
			return k.poison(err)
		}
		k.attrib.Set(op.Key, msg.SequenceNumber)
		return nil
	}

	// Case 3: no pending clear, no pending id for this key. A local op
	// reaching here with no pending id is a protocol bug.
	if local {
		return k.poison(&kernelerrors.InvariantViolationError{
			Reason: "local key op acknowledged with no pending id for key " + op.Key,
		})
	}

	return k.applyRemoteKeyOp(msg)
}

func (k *Kernel) applyRemoteKeyOp(msg SequencedMessage) error {
	op := msg.Contents

	switch op.Type {
	case OpSet:
		lv, err := valueenc.FromWire(op.Value, k.ser)
		if err != nil {
			return err
		}
		previous, existed := k.store.set(op.Key, lv)
		var prevPtr *valueenc.LocalValue
		if existed {
			prevPtr = &previous
		}
		k.events.EmitValueChanged(events.ValueChangedEvent{Key: op.Key, PreviousValue: prevPtr, Local: false})
		k.attrib.Set(op.Key, msg.SequenceNumber)

	case OpDelete:
		previous, existed := k.store.delete(op.Key)
		if existed {
			k.events.EmitValueChanged(events.ValueChangedEvent{Key: op.Key, PreviousValue: &previous, Local: false})
		}
		k.attrib.Set(op.Key, msg.SequenceNumber)
	}
	return nil
}

// processClear implements clear processing (spec 4.3.4).
func (k *Kernel) processClear(msg SequencedMessage, local bool, meta *OpMetadata) error {
	if local {
		if meta == nil {
			return k.poison(&kernelerrors.InvariantViolationError{Reason: "local clear acknowledged with no matching metadata"})
		}
		if err := k.pending.PopClearFront(meta.ID); err != nil {
			return k.poison(err)
		}
		if k.attrib.Enabled() {
			k.attrib.Clear()
		}
		return nil
	}

	if k.pending.HasAnyPendingKeys() {
		k.clearExceptPending()
		return nil
	}

	k.store.clear()
	k.attrib.Clear()
	k.events.EmitClear(events.ClearEvent{Local: false})
	return nil
}

// clearExceptPending preserves keys with pending local writes across a
// remote clear: it snapshots them, clears the store, and reinserts
// them as if freshly authored locally. The preserved writes will later
// sequence and overwrite/create their values normally.
func (k *Kernel) clearExceptPending() {
	var preserved []KV
	for _, e := range k.store.entries() {
		if len(k.pending.PendingIDsFor(e.Key)) > 0 {
			preserved = append(preserved, e)
		}
	}

	k.store.clear()
	for _, e := range preserved {
		k.store.set(e.Key, e.Value)
		k.events.EmitValueChanged(events.ValueChangedEvent{Key: e.Key, PreviousValue: nil, Local: true})
	}
}

// TryApplyStashed applies op as though it had just been issued locally
// (allocating a fresh pending id and submitting it if attached) and
// returns the metadata the kernel built for it.
func (k *Kernel) TryApplyStashed(op Op) (OpMetadata, error) {
	if err := k.checkPoisoned(); err != nil {
		return OpMetadata{}, err
	}

	switch op.Type {
	case OpSet:
		lv, err := valueenc.FromWire(op.Value, k.ser)
		if err != nil {
			return OpMetadata{}, err
		}
		previous, existed := k.store.set(op.Key, lv)
		var prevPtr *valueenc.LocalValue
		if existed {
			prevPtr = &previous
		}
		k.events.EmitValueChanged(events.ValueChangedEvent{Key: op.Key, PreviousValue: prevPtr, Local: true})

		meta := OpMetadata{Kind: MetaAdd, Key: op.Key}
		if existed {
			meta = OpMetadata{Kind: MetaEdit, Key: op.Key, PreviousValue: prevPtr}
		}
		if k.attached() {
			meta.ID = k.pending.NextID()
			k.pending.PushKey(op.Key, meta.ID)
			k.transport.Submit(op, meta)
		}
		return meta, nil

	case OpDelete:
		previous, existed := k.store.delete(op.Key)
		var prevPtr *valueenc.LocalValue
		if existed {
			prevPtr = &previous
			k.events.EmitValueChanged(events.ValueChangedEvent{Key: op.Key, PreviousValue: prevPtr, Local: true})
		}

		meta := OpMetadata{Kind: MetaEdit, Key: op.Key, PreviousValue: prevPtr}
		if k.attached() {
			meta.ID = k.pending.NextID()
			k.pending.PushKey(op.Key, meta.ID)
			k.transport.Submit(op, meta)
		}
		return meta, nil

	case OpClear:
		snapshot := k.store.entries()
		k.store.clear()
		k.events.EmitClear(events.ClearEvent{Local: true})

		meta := OpMetadata{Kind: MetaClear, PreviousMap: snapshot}
		if k.attached() {
			meta.ID = k.pending.NextID()
			k.pending.PushClear(meta.ID)
			k.transport.Submit(op, meta)
		}
		return meta, nil

	default:
		return OpMetadata{}, k.poison(&kernelerrors.UsageError{Reason: "unknown stashed op kind: " + string(op.Type)})
	}
}

// Rollback reverts the local mutation recorded by meta and removes its
// matching pending id. meta must be the metadata this kernel produced
// for op; a mismatch between op.Type and meta.Kind is a usage error.
func (k *Kernel) Rollback(op Op, meta OpMetadata) error {
	if err := k.checkPoisoned(); err != nil {
		return err
	}

	switch {
	case op.Type != OpSet && op.Type != OpDelete && op.Type != OpClear:
		return k.poison(&kernelerrors.UsageError{Reason: "rollback: unrecognized op type " + string(op.Type)})
	case op.Type == OpClear && meta.Kind != MetaClear:
		return k.poison(&kernelerrors.UsageError{Reason: "rollback: clear op paired with non-clear metadata"})
	case (op.Type == OpSet || op.Type == OpDelete) && meta.Kind == MetaClear:
		return k.poison(&kernelerrors.UsageError{Reason: "rollback: key op paired with clear metadata"})
	case op.Type == OpDelete && meta.Kind == MetaAdd:
		return k.poison(&kernelerrors.UsageError{Reason: "rollback: delete op paired with add metadata"})
	}

	switch meta.Kind {
	case MetaAdd:
		if err := k.pending.PopKeyBack(meta.Key, meta.ID); err != nil {
			return k.poison(err)
		}
		k.store.delete(meta.Key)

	case MetaEdit:
		if err := k.pending.PopKeyBack(meta.Key, meta.ID); err != nil {
			return k.poison(err)
		}
		if meta.PreviousValue != nil {
			k.store.set(meta.Key, *meta.PreviousValue)
		} else {
			k.store.delete(meta.Key)
		}

	case MetaClear:
		if err := k.pending.PopClearBack(meta.ID); err != nil {
			return k.poison(err)
		}
		k.store.clear()
		for _, kv := range meta.PreviousMap {
			k.store.set(kv.Key, kv.Value)
		}

	default:
		return k.poison(&kernelerrors.UsageError{Reason: "rollback: unrecognized metadata kind"})
	}

	return nil
}
