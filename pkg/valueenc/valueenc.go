// Package valueenc is the C1 component: value encoding between the
// user-facing representation, the wire representation, and the
// canonical snapshot representation.
//
// Plain values are round-tripped through BSON Extended JSON the same
// way the teacher's pkg/storage/bson.go turns arbitrary JSON documents
// into a canonical byte form and back; shared values carry an opaque
// handle resolved by an external Serializer collaborator.
package valueenc

import (
	"encoding/json"
	"fmt"

	kernelerrors "github.com/sharedmap/kernel/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind tags a value as a self-contained payload or a handle to an
// external collaborator (e.g. another DDS, a blob).
type Kind string

const (
	KindPlain  Kind = "Plain"
	KindShared Kind = "Shared"
)

// LocalValue is the in-memory representation C4 stores per key.
type LocalValue struct {
	Kind Kind
	// Plain holds the value for KindPlain, any JSON-round-trippable
	// payload, canonicalized through bson's Extended JSON codec.
	Plain json.RawMessage
	// Handle holds the resolved collaborator for KindShared.
	Handle any
}

// SerializedValue is the wire/snapshot representation: {type, value}.
type SerializedValue struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Serializer resolves and encodes handles for KindShared values. It is
// the kernel's external collaborator for anything that isn't a plain
// JSON payload.
type Serializer interface {
	Encode(handle any) (json.RawMessage, error)
	Decode(raw json.RawMessage) (any, error)
}

// FromUser builds a LocalValue from a value passed to Set by a caller.
// A nil serializer means every value is treated as plain.
func FromUser(v any, ser Serializer) (LocalValue, error) {
	if h, ok := v.(handleValue); ok && ser != nil {
		return LocalValue{Kind: KindShared, Handle: h.handle}, nil
	}

	raw, err := canonicalize(v)
	if err != nil {
		return LocalValue{}, err
	}
	return LocalValue{Kind: KindPlain, Plain: raw}, nil
}

// handleValue lets callers mark a value as a shared handle explicitly,
// since Go has no structural equivalent to "is a DDS handle instance".
type handleValue struct{ handle any }

// NewHandle wraps h so FromUser treats it as KindShared.
func NewHandle(h any) any { return handleValue{handle: h} }

// canonicalize round-trips v through BSON Extended JSON, mirroring the
// teacher's JsonToBson/BsonToJson pair, to give Plain a canonical byte
// form instead of whatever encoding/json happens to produce.
func canonicalize(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("valueenc: encoding user value: %w", err)
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, true, &doc); err != nil {
		// Not every JSON-round-trippable payload is a BSON document
		// (e.g. bare scalars, arrays) — fall back to the raw JSON the
		// same way the teacher's bson helpers fall back on parse
		// failure rather than rejecting the value outright.
		return raw, nil
	}

	canon, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return raw, nil
	}
	return canon, nil
}

// FromWire decodes an inbound SerializedValue into a LocalValue. An
// unrecognized kind is a hard error: the containing operation must
// fail in its entirety.
func FromWire(w SerializedValue, ser Serializer) (LocalValue, error) {
	switch w.Type {
	case KindPlain:
		return LocalValue{Kind: KindPlain, Plain: w.Value}, nil
	case KindShared:
		if ser == nil {
			return LocalValue{}, &kernelerrors.UnknownValueKindError{Kind: string(w.Type)}
		}
		h, err := ser.Decode(w.Value)
		if err != nil {
			return LocalValue{}, fmt.Errorf("valueenc: decoding shared handle: %w", err)
		}
		return LocalValue{Kind: KindShared, Handle: h}, nil
	default:
		return LocalValue{}, &kernelerrors.UnknownValueKindError{Kind: string(w.Type)}
	}
}

// ToWire encodes a LocalValue for transmission over the wire.
func ToWire(lv LocalValue, ser Serializer) (SerializedValue, error) {
	return encode(lv, ser)
}

// ToSnapshot encodes a LocalValue for inclusion in a persisted snapshot.
// Identical to ToWire: the kernel does not distinguish the two paths
// for C1's own purposes.
func ToSnapshot(lv LocalValue, ser Serializer) (SerializedValue, error) {
	return encode(lv, ser)
}

func encode(lv LocalValue, ser Serializer) (SerializedValue, error) {
	switch lv.Kind {
	case KindPlain:
		return SerializedValue{Type: KindPlain, Value: lv.Plain}, nil
	case KindShared:
		if ser == nil {
			return SerializedValue{}, &kernelerrors.UnknownValueKindError{Kind: string(lv.Kind)}
		}
		raw, err := ser.Encode(lv.Handle)
		if err != nil {
			return SerializedValue{}, fmt.Errorf("valueenc: encoding shared handle: %w", err)
		}
		return SerializedValue{Type: KindShared, Value: raw}, nil
	default:
		return SerializedValue{}, &kernelerrors.UnknownValueKindError{Kind: string(lv.Kind)}
	}
}

// Equal reports whether two LocalValues represent the same logical
// value, used by tests checking snapshot round-trips.
func Equal(a, b LocalValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindShared {
		return fmt.Sprintf("%v", a.Handle) == fmt.Sprintf("%v", b.Handle)
	}
	return string(a.Plain) == string(b.Plain)
}
