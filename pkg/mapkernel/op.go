package mapkernel

import "github.com/sharedmap/kernel/pkg/valueenc"

// OpType tags a wire operation.
type OpType string

const (
	OpSet    OpType = "set"
	OpDelete OpType = "delete"
	OpClear  OpType = "clear"
)

// Op is a wire operation, as submitted to or delivered by the transport.
type Op struct {
	Type  OpType                   `json:"type"`
	Key   string                   `json:"key,omitempty"`
	Value valueenc.SerializedValue `json:"value,omitempty"`
}

// SequencedMessage is the envelope the transport delivers on inbound
// processing: an Op stamped with its place in the authoritative stream.
type SequencedMessage struct {
	Contents             Op
	SequenceNumber       uint64
	ClientID             string
	ClientSequenceNumber uint64
}

// MetaKind tags which of the three local-metadata shapes an OpMetadata
// value carries.
type MetaKind string

const (
	MetaClear MetaKind = "clear"
	MetaAdd   MetaKind = "add"
	MetaEdit  MetaKind = "edit"
)

// OpMetadata is the kernel's private record of a locally submitted op,
// handed back on rollback/resubmit/ack so the kernel can undo or
// rotate its own pending bookkeeping.
type OpMetadata struct {
	Kind MetaKind
	ID   uint64

	// Key is set for add/edit; empty for clear.
	Key string

	// PreviousValue is set for edit (set over an existing key, or
	// delete of a present key); nil for add (no prior value), for
	// clear, and for the edit recorded by a delete of an absent key.
	PreviousValue *valueenc.LocalValue

	// PreviousMap is set for clear: a snapshot of every key/value pair
	// the store held immediately before the clear, used to restore it
	// on rollback.
	PreviousMap []KV
}

// Transport is the kernel's external collaborator: the "central
// ordering service" per spec, reduced to the calls C4 actually makes.
type Transport interface {
	// Submit hands op+metadata to the transport for broadcast. The
	// metadata is opaque to the transport; it is returned unchanged to
	// Rollback/resubmit callbacks on this same kernel.
	Submit(op Op, meta OpMetadata)
	// IsAttached reports whether the kernel should submit ops at all.
	IsAttached() bool
}
