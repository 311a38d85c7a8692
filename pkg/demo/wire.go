// Package demo is a runnable, in-process stand-in for the external
// "central ordering service" the map kernel is reconciled against. It
// exists only to drive integration tests and the CLI demo; production
// deployments plug in a real transport instead.
package demo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/sharedmap/kernel/pkg/mapkernel"
)

// envelopeMagic identifies a demo-sequencer envelope, the same role
// WALMagic plays for a WAL entry header.
const envelopeMagic uint32 = 0xC0FFEE01

const headerSize = 12 // magic(4) + payload length(4) + CRC32(4)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Envelope is one op in flight between a client and the sequencer.
type Envelope struct {
	ClientID  string       `json:"clientId"`
	ClientSeq uint64       `json:"clientSeq"`
	Op        mapkernel.Op `json:"op"`
}

// Marshal frames env as magic + length-prefixed JSON payload + CRC32
// (Castagnoli), the same three-part shape as a WAL entry header,
// adapted from a disk record to an in-memory wire message.
func Marshal(env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("demo: encoding envelope: %w", err)
	}

	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], envelopeMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[8:12], crc32.Checksum(payload, castagnoliTable))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// Unmarshal validates the magic number and checksum before decoding
// the payload, mirroring the WAL reader's "reject corrupt entries
// before trusting their contents" order of operations.
func Unmarshal(buf []byte) (Envelope, error) {
	if len(buf) < headerSize {
		return Envelope{}, fmt.Errorf("demo: envelope shorter than header (%d bytes)", len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != envelopeMagic {
		return Envelope{}, fmt.Errorf("demo: bad envelope magic %#x", magic)
	}

	payloadLen := binary.LittleEndian.Uint32(buf[4:8])
	wantCRC := binary.LittleEndian.Uint32(buf[8:12])

	if uint32(len(buf)-headerSize) != payloadLen {
		return Envelope{}, fmt.Errorf("demo: envelope payload length mismatch")
	}
	payload := buf[headerSize : headerSize+int(payloadLen)]

	if crc32.Checksum(payload, castagnoliTable) != wantCRC {
		return Envelope{}, fmt.Errorf("demo: envelope checksum mismatch")
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("demo: decoding envelope payload: %w", err)
	}
	return env, nil
}
