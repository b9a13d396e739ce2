package playback

import (
	"errors"
	"fmt"
)

// Entry pairs a loop with how many times it plays before the sequence
// advances.
type Entry struct {
	Loop    *Loop
	Repeats uint32
}

// Sequence is a non-empty, ordered chain of entries. After the last entry
// finishes its repeats, playback cycles back to the first: a sequence is a
// closed loop of loops and never terminates on its own.
type Sequence struct {
	entries []Entry
}

// NewSequence validates and builds a sequence. A corrupt sequence (no
// entries, nil or zero-length loop, repeat count below 1) is rejected here,
// before it can reach the tick path.
func NewSequence(entries ...Entry) (*Sequence, error) {
	if len(entries) == 0 {
		return nil, errors.New("sequence needs at least one entry")
	}
	for i, e := range entries {
		if e.Loop == nil {
			return nil, fmt.Errorf("entry %d has no loop", i)
		}
		if e.Loop.Length == 0 {
			return nil, fmt.Errorf("entry %d (%s) has zero length", i, e.Loop.Name)
		}
		if e.Repeats < 1 {
			return nil, fmt.Errorf("entry %d (%s) has repeat count %d, need at least 1", i, e.Loop.Name, e.Repeats)
		}
	}
	return &Sequence{entries: append([]Entry(nil), entries...)}, nil
}

// Len returns the number of entries.
func (s *Sequence) Len() int { return len(s.entries) }

// Entry returns the i-th entry.
func (s *Sequence) Entry(i int) Entry { return s.entries[i] }
