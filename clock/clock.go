// Package clock tracks MIDI clock synchronization and transport state.
//
// State is shared between the MIDI input goroutine (the single writer) and
// the TUI (readers polling on their own cadence). Numeric fields are
// individually atomic so readers never block the pulse path; only the
// timestamp ring buffer is behind a mutex, held for the few instructions of
// a push-and-scan.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// MIDI real-time status bytes (MIDI 1.0 spec).
const (
	MsgClock    byte = 0xF8 // sent 24 times per quarter note
	MsgStart    byte = 0xFA // reset position and start playback
	MsgContinue byte = 0xFB // resume playback from current position
	MsgStop     byte = 0xFC // stop playback, keep position
)

// PPQN is the MIDI clock resolution in pulses per quarter note.
const PPQN = 24

// bpmWindow is the rolling window for BPM estimation: one 4/4 bar of pulses.
const bpmWindow = 96

// IsRealtime reports whether b is a real-time status byte this package
// understands. Anything else is ignored by Advance.
func IsRealtime(b byte) bool {
	switch b {
	case MsgClock, MsgStart, MsgContinue, MsgStop:
		return true
	}
	return false
}

// TimeBuffer is a fixed-capacity ring buffer of pulse arrival timestamps.
// It starts estimating with partial data and overwrites the oldest entry
// once full, so the BPM readout sharpens as a full bar of samples arrives.
type TimeBuffer struct {
	times [bpmWindow]time.Time
	index int
	count int
}

// Push records a pulse arrival time, overwriting the oldest entry on overflow.
func (b *TimeBuffer) Push(t time.Time) {
	b.times[b.index] = t
	b.index = (b.index + 1) % bpmWindow
	if b.count < bpmWindow {
		b.count++
	}
}

// Oldest returns the oldest recorded timestamp and the sample count.
// ok is false while the buffer is empty.
func (b *TimeBuffer) Oldest() (t time.Time, n int, ok bool) {
	if b.count == 0 {
		return time.Time{}, 0, false
	}
	if b.count < bpmWindow {
		return b.times[0], b.count, true
	}
	// full: the slot about to be overwritten holds the oldest sample
	return b.times[b.index], b.count, true
}

// Len returns the number of stored samples.
func (b *TimeBuffer) Len() int { return b.count }

// Clear drops all samples.
func (b *TimeBuffer) Clear() {
	b.times = [bpmWindow]time.Time{}
	b.index = 0
	b.count = 0
}

// State tracks transport mode, pulse count and the rolling BPM estimate.
//
// Auto-start: when a clock pulse arrives before any explicit transport
// message, playback starts anyway. This handles connecting to a DAW that is
// already running, where the START was sent before we were listening. Once
// any START/STOP/CONTINUE has been seen, only explicit transport messages
// change the mode.
type State struct {
	beatsPerBar uint64

	running       atomic.Bool
	seenTransport atomic.Bool
	pulses        atomic.Uint64
	bpmX100       atomic.Uint64

	mu    sync.Mutex
	times TimeBuffer
}

// NewState returns a stopped clock. beatsPerBar is the time-signature
// numerator used for bar/beat display; values < 1 fall back to 4/4.
func NewState(beatsPerBar int) *State {
	if beatsPerBar < 1 {
		beatsPerBar = 4
	}
	return &State{beatsPerBar: uint64(beatsPerBar)}
}

// Running reports whether the transport is playing.
func (s *State) Running() bool { return s.running.Load() }

// SeenTransport reports whether any explicit transport message has arrived
// this session (disables auto-start).
func (s *State) SeenTransport() bool { return s.seenTransport.Load() }

// Pulses returns the current pulse count (24 per quarter note).
func (s *State) Pulses() uint64 { return s.pulses.Load() }

// BPMx100 returns the BPM estimate scaled by 100, 0 when undefined.
func (s *State) BPMx100() uint64 { return s.bpmX100.Load() }

// BPM returns the estimated tempo in quarter notes per minute.
func (s *State) BPM() float64 { return float64(s.bpmX100.Load()) / 100 }

// BeatsPerBar returns the time-signature numerator used for display.
func (s *State) BeatsPerBar() int { return int(s.beatsPerBar) }

// Position returns the 1-indexed bar and beat plus the pulse within the beat.
func (s *State) Position() (bar, beat, tick uint64) {
	count := s.pulses.Load()
	beats := count / PPQN
	bar = beats/s.beatsPerBar + 1
	beat = beats%s.beatsPerBar + 1
	tick = count % PPQN
	return bar, beat, tick
}

// Advance processes one incoming real-time status byte. It is the sole
// mutator and must be called from a single goroutine; readers may poll the
// accessors concurrently. Unknown bytes are ignored: this is a best-effort
// real-time stream, one stray byte must never stop playback.
func (s *State) Advance(status byte, now time.Time) {
	switch status {
	case MsgStart:
		s.seenTransport.Store(true)
		s.running.Store(true)
		s.pulses.Store(0)
		s.bpmX100.Store(0)
		s.mu.Lock()
		s.times.Clear()
		s.mu.Unlock()

	case MsgContinue:
		s.seenTransport.Store(true)
		s.running.Store(true)

	case MsgStop:
		s.seenTransport.Store(true)
		s.running.Store(false)

	case MsgClock:
		if !s.seenTransport.Load() {
			s.running.Store(true)
		}

		// Estimate tempo on every pulse, running or not, so the BPM
		// readout stays live while the transport is stopped.
		s.mu.Lock()
		s.times.Push(now)
		oldest, n, ok := s.times.Oldest()
		s.mu.Unlock()
		if ok && n > 1 {
			elapsed := now.Sub(oldest).Seconds()
			if elapsed > 0 {
				beats := float64(n-1) / PPQN
				bpm := beats / (elapsed / 60)
				s.bpmX100.Store(uint64(bpm * 100))
			}
		}

		if s.running.Load() {
			s.pulses.Add(1)
		}
	}
}
