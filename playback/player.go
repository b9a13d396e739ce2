package playback

import (
	"sync"

	"midi-looper/debug"
)

// Player is the tick-driven playback cursor over a sequence: current entry,
// iteration within that entry, and the pulse position inside the current
// loop iteration.
//
// Tick runs on the clock goroutine while the TUI reads snapshots from its
// own; the cursor fields share a joint invariant, so one short mutex guards
// them all. The critical section is O(events at one pulse) and never spans
// I/O.
type Player struct {
	seq *Sequence

	mu        sync.Mutex
	entry     int
	iteration uint32
	pos       uint64 // pulses into the current loop iteration
	next      int    // index of the next unplayed event in the current loop
}

// NewPlayer returns a player positioned at the start of the sequence.
func NewPlayer(seq *Sequence) *Player {
	return &Player{seq: seq}
}

// Tick returns the events due at the current loop-relative position, in
// their stored order, then advances the cursor. Called once per clock pulse
// while the transport is running; pulse is the global clock position, used
// for diagnostics only — the player keeps its own loop-relative position so
// a CONTINUE resumes exactly where it left off regardless of the clock
// counter.
//
// The wrap check runs after collection, so the last pulse of a loop still
// emits its events before the cursor moves on.
func (p *Player) Tick(pulse uint64) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := p.seq.Entry(p.entry)
	loop := entry.Loop

	var due [][]byte
	for p.next < len(loop.Events) && loop.Events[p.next].Pos <= p.pos {
		due = append(due, loop.Events[p.next].Data)
		p.next++
	}
	if len(due) > 0 {
		debug.LogEvery(64, "player", "pulse=%d loop=%s pos=%d events=%d", pulse, loop.Name, p.pos, len(due))
	}

	p.pos++
	if p.pos >= loop.Length {
		p.pos = 0
		p.next = 0
		p.iteration++
		if p.iteration >= entry.Repeats {
			p.iteration = 0
			p.entry = (p.entry + 1) % p.seq.Len()
		}
	}
	return due
}

// Reset returns the cursor to entry 0, iteration 0, position 0. Called on
// transport START only — STOP and CONTINUE leave the cursor where it is.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry = 0
	p.iteration = 0
	p.pos = 0
	p.next = 0
}

// CurrentLoopName returns the name of the loop under the cursor.
func (p *Player) CurrentLoopName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq.Entry(p.entry).Loop.Name
}

// State returns the entry index, the 1-indexed iteration within it, and the
// entry's repeat count, for display.
func (p *Player) State() (entry int, iteration, repeats uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entry, p.iteration + 1, p.seq.Entry(p.entry).Repeats
}

// Remaining returns the pulses left in the current loop iteration, counting
// the pulse at the current position.
func (p *Player) Remaining() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq.Entry(p.entry).Loop.Length - p.pos
}
