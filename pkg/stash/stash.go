// Package stash is a tiny append-only journal for ops submitted before
// a kernel's transport was attached. It concretizes the glossary's
// "stashed op" into a runnable format: ops are appended as they're
// issued while detached, and replayed into tryApplyStashed once a
// transport shows up.
//
// The on-disk shape is adapted from the teacher's segmented document
// heap (pkg/heap): a magic number, a record header, and a checksum per
// record, simplified to a single unsegmented file since a pending-op
// backlog is expected to be small and short-lived, unlike a document
// store's heap.
package stash

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/sharedmap/kernel/pkg/mapkernel"
)

// journalMagic identifies a stash file, the same role HeapMagic plays
// for the teacher's document heap.
const journalMagic = 0x53544153 // ASCII-ish "STAS"

// recordHeaderSize is Length(4) + CRC32(4), trailing the magic check
// that opens the file.
const recordHeaderSize = 8

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Journal is an append-only, file-backed queue of stashed ops.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if absent) the journal file at path.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("stash: opening journal: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stash: stat journal: %w", err)
	}
	if info.Size() == 0 {
		if err := writeMagic(f); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &Journal{file: f}, nil
}

func writeMagic(f *os.File) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], journalMagic)
	_, err := f.WriteAt(buf[:], 0)
	return err
}

// Append records op at the end of the journal.
func (j *Journal) Append(op mapkernel.Op) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("stash: encoding op: %w", err)
	}

	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.Checksum(payload, castagnoliTable))

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("stash: seeking to append: %w", err)
	}
	if _, err := j.file.Write(header[:]); err != nil {
		return fmt.Errorf("stash: writing record header: %w", err)
	}
	if _, err := j.file.Write(payload); err != nil {
		return fmt.Errorf("stash: writing record payload: %w", err)
	}
	return nil
}

// ReplayAll reads every stashed op from the start of the journal, in
// the order they were appended. A truncated trailing record (a crash
// mid-append) is silently dropped rather than failing the whole replay.
func (j *Journal) ReplayAll() ([]mapkernel.Op, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("stash: seeking to start: %w", err)
	}

	var magicBuf [4]byte
	if _, err := io.ReadFull(j.file, magicBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, fmt.Errorf("stash: reading magic: %w", err)
	}
	if binary.LittleEndian.Uint32(magicBuf[:]) != journalMagic {
		return nil, fmt.Errorf("stash: bad journal magic")
	}

	var ops []mapkernel.Op
	for {
		var header [recordHeaderSize]byte
		if _, err := io.ReadFull(j.file, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("stash: reading record header: %w", err)
		}

		length := binary.LittleEndian.Uint32(header[0:4])
		wantCRC := binary.LittleEndian.Uint32(header[4:8])

		payload := make([]byte, length)
		if _, err := io.ReadFull(j.file, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break // truncated trailing record from a crash mid-append
			}
			return nil, fmt.Errorf("stash: reading record payload: %w", err)
		}
		if crc32.Checksum(payload, castagnoliTable) != wantCRC {
			break // corrupt trailing record
		}

		var op mapkernel.Op
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("stash: decoding op: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Truncate discards every stashed record, leaving just the magic
// header, once ReplayAll's results have been durably applied.
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Truncate(4); err != nil {
		return fmt.Errorf("stash: truncating journal: %w", err)
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return writeMagic(j.file)
}

// Close releases the journal's file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// ReplayInto replays every stashed op in the journal into k via
// TryApplyStashed, then truncates the journal on full success.
func ReplayInto(j *Journal, k *mapkernel.Kernel) error {
	ops, err := j.ReplayAll()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if _, err := k.TryApplyStashed(op); err != nil {
			return err
		}
	}
	return j.Truncate()
}
