// Package rangemap is the C5 component: a sorted, non-overlapping list
// of (start, length, value) entries over the non-negative integers.
//
// The entry slice is kept sorted by start and searched with
// golang.org/x/exp/slices.BinarySearchFunc, the same sorted-slice
// maintenance idiom the wider corpus leans on for this kind of
// interval bookkeeping; the binary search's comparator reuses the
// teacher's Comparable/IntKey abstraction, while the overlap and trim
// checks compare int64 positions directly.
package rangemap

import (
	"fmt"
	"strings"

	"github.com/sharedmap/kernel/pkg/types"
	"golang.org/x/exp/slices"
)

// Entry is one interval in the map. Start and Length are both >= 0,
// Length is always >= 1, and [Start, Start+Length) never overlaps any
// other entry's range.
type Entry struct {
	Start  int64
	Length int64
	Value  any
}

func (e Entry) end() int64 { return e.Start + e.Length }

// RangeMap holds the sorted entry list.
type RangeMap struct {
	entries []Entry
}

// New returns an empty range map.
func New() *RangeMap {
	return &RangeMap{}
}

// indexOf returns the index of the first entry whose Start >= start.
func (m *RangeMap) indexOf(start int64) int {
	idx, _ := slices.BinarySearchFunc(m.entries, start, func(e Entry, start int64) int {
		return types.IntKey(e.Start).Compare(types.IntKey(start))
	})
	return idx
}

// firstOverlapping returns the index of the first entry intersecting
// [start, start+length), or len(m.entries) if none does.
func (m *RangeMap) firstOverlapping(start, length int64) int {
	end := start + length
	idx := m.indexOf(start)
	// indexOf finds the first entry with Start >= start; the entry
	// immediately before it may still overlap if it extends past start.
	if idx > 0 && m.entries[idx-1].end() > start {
		idx--
	}
	if idx < len(m.entries) && m.entries[idx].Start < end {
		return idx
	}
	return len(m.entries)
}

// GetFromRange returns the value of the prefix of [start, start+length)
// that has a uniform value, and how long that prefix is. A "nothing"
// result is value == nil.
func (m *RangeMap) GetFromRange(start, length int64) (value any, runLength int64) {
	if length <= 0 {
		return nil, 0
	}
	end := start + length

	idx := m.firstOverlapping(start, length)
	if idx == len(m.entries) || m.entries[idx].Start > start {
		// Gap before the next entry (or no entry at all): "nothing"
		// runs until that entry's Start, or to the end of the query.
		if idx == len(m.entries) {
			return nil, length
		}
		gapEnd := m.entries[idx].Start
		if gapEnd > end {
			gapEnd = end
		}
		return nil, gapEnd - start
	}

	e := m.entries[idx]
	runEnd := e.end()
	if runEnd > end {
		runEnd = end
	}
	return e.Value, runEnd - start
}

// GetFirstEntryFromRange returns the first entry intersecting
// [start, start+length), if any.
func (m *RangeMap) GetFirstEntryFromRange(start, length int64) (Entry, bool) {
	idx := m.firstOverlapping(start, length)
	if idx == len(m.entries) {
		return Entry{}, false
	}
	return m.entries[idx], true
}

// SetInRange replaces every entry overlapping [start, start+length)
// with a single entry holding value, trimming partial overlaps on
// either side and splitting a containing entry into prefix/new/suffix
// as needed. A nil value behaves like DeleteFromRange.
func (m *RangeMap) SetInRange(start, length int64, value any) {
	if length <= 0 {
		return
	}
	if value == nil {
		m.DeleteFromRange(start, length)
		return
	}

	m.removeOverlap(start, length)
	idx := m.indexOf(start)
	m.entries = append(m.entries, Entry{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = Entry{Start: start, Length: length, Value: value}
}

// DeleteFromRange removes every entry fully inside [start, start+length),
// trims entries that straddle either boundary, and splits an entry
// that fully contains the deleted range into two.
func (m *RangeMap) DeleteFromRange(start, length int64) {
	if length <= 0 {
		return
	}
	m.removeOverlap(start, length)
}

// removeOverlap trims/splits/removes every entry overlapping
// [start, start+length), leaving a gap in that range.
func (m *RangeMap) removeOverlap(start, length int64) {
	end := start + length
	out := m.entries[:0:0]

	for _, e := range m.entries {
		switch {
		case e.end() <= start || e.Start >= end:
			// No overlap at all.
			out = append(out, e)
		case e.Start < start && e.end() > end:
			// The deletion is strictly interior: split into prefix + suffix.
			out = append(out,
				Entry{Start: e.Start, Length: start - e.Start, Value: e.Value},
				Entry{Start: end, Length: e.end() - end, Value: e.Value},
			)
		case e.Start < start:
			// Overlaps the left edge: trim the tail off.
			out = append(out, Entry{Start: e.Start, Length: start - e.Start, Value: e.Value})
		case e.end() > end:
			// Overlaps the right edge: trim the head off.
			out = append(out, Entry{Start: end, Length: e.end() - end, Value: e.Value})
		default:
			// Fully contained: drop it.
		}
	}

	m.entries = out
}

// Entries returns a snapshot copy of every entry, sorted by Start.
func (m *RangeMap) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// String renders the map as a sequence of [start, end) => value spans,
// for debugging and the demo CLI.
func (m *RangeMap) String() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%d,%d)=%v", e.Start, e.end(), e.Value)
	}
	return b.String()
}
