package mapkernel

import (
	"bytes"
	"encoding/json"
	"fmt"

	kernelerrors "github.com/sharedmap/kernel/pkg/errors"
	"github.com/sharedmap/kernel/pkg/valueenc"
)

// wireEntry is one key's serialized form: {type, value[, attribution]}.
type wireEntry struct {
	Type        valueenc.Kind   `json:"type"`
	Value       json.RawMessage `json:"value"`
	Attribution *attrWire       `json:"attribution,omitempty"`
}

type attrWire struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// Serialize emits a textual snapshot: a flat object mapping each key to
// {type, value[, attribution]}, in insertion order. encoding/json
// always sorts map keys alphabetically, which would break insertion
// order, so the object is hand-assembled from the ordered entry list
// instead of round-tripped through a Go map.
func (k *Kernel) Serialize() (string, error) {
	if err := k.checkPoisoned(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, e := range k.store.entries() {
		if i > 0 {
			buf.WriteByte(',')
		}

		wire, err := valueenc.ToSnapshot(e.Value, k.ser)
		if err != nil {
			return "", err
		}

		entry := wireEntry{Type: wire.Type, Value: wire.Value}
		if a, ok := k.attrib.Get(e.Key); ok {
			entry.Attribution = &attrWire{Type: "op", Seq: a.Seq}
		}

		entryBytes, err := json.Marshal(entry)
		if err != nil {
			return "", fmt.Errorf("mapkernel: encoding snapshot entry for %q: %w", e.Key, err)
		}

		keyBytes, err := json.Marshal(e.Key)
		if err != nil {
			return "", fmt.Errorf("mapkernel: encoding snapshot key %q: %w", e.Key, err)
		}

		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(entryBytes)
	}

	buf.WriteByte('}')
	return buf.String(), nil
}

// Populate replaces the store's contents from a previously serialized
// snapshot, restoring attribution where present. It accepts two input
// schemas for back-compat with the richer directory DDS format: a flat
// {key: entry} object, and a directory-style {storage: {...}, ...}
// wrapper, of which only the storage field is consumed here.
//
// Key order is taken from the order keys appear in the input text,
// read with a token-by-token json.Decoder walk rather than unmarshaled
// into a Go map, since map iteration order is unspecified.
func (k *Kernel) Populate(snapshot string) error {
	if err := k.checkPoisoned(); err != nil {
		return err
	}

	body, err := normalizeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("mapkernel: decoding snapshot: %w", err)
	}

	keys, entries, err := decodeOrderedObject(body)
	if err != nil {
		return fmt.Errorf("mapkernel: decoding snapshot: %w", err)
	}

	k.store.clear()
	k.attrib.Clear()

	for _, key := range keys {
		var we wireEntry
		if err := json.Unmarshal(entries[key], &we); err != nil {
			return fmt.Errorf("mapkernel: decoding snapshot entry %q: %w", key, err)
		}

		lv, err := valueenc.FromWire(valueenc.SerializedValue{Type: we.Type, Value: we.Value}, k.ser)
		if err != nil {
			return &kernelerrors.UnknownValueKindError{Kind: string(we.Type)}
		}
		k.store.set(key, lv)

		if we.Attribution != nil {
			k.attrib.Set(key, we.Attribution.Seq)
		}
	}
	return nil
}

// normalizeSnapshot returns the flat {key: entry} object text, unwrapping
// the directory-compatible {storage: ..., subdirectories: ..., ci: ...}
// shape if that's what was given.
//
// The two schemas are disambiguated heuristically: treat the input as
// directory-nested only if it has a top-level "storage" field whose
// value is itself a JSON object lacking a "type" field (a flat entry
// always has "type"); otherwise treat the whole input as flat. This can
// misclassify a flat snapshot that happens to use the literal key
// "storage" for something that isn't a WireEntry — an accepted
// ambiguity inherent to supporting both schemas without a version tag.
func normalizeSnapshot(snapshot string) (string, error) {
	var probe struct {
		Storage json.RawMessage `json:"storage"`
	}
	if err := json.Unmarshal([]byte(snapshot), &probe); err != nil {
		return "", err
	}
	if len(probe.Storage) == 0 {
		return snapshot, nil
	}

	var storageProbe struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(probe.Storage, &storageProbe); err == nil && storageProbe.Type != nil {
		// "storage" looks like a WireEntry itself (has a type field) —
		// this is a flat snapshot whose author happened to use the key
		// "storage", not the directory wrapper.
		return snapshot, nil
	}

	return string(probe.Storage), nil
}

// decodeOrderedObject walks a JSON object token by token, returning its
// top-level keys in appearance order along with each key's raw value.
func decodeOrderedObject(text string) (keys []string, values map[string]json.RawMessage, err error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}

	values = make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected a string object key")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}

		keys = append(keys, key)
		values[key] = raw
	}
	return keys, values, nil
}
