package clock

import (
	"context"
	"time"
)

// Master generates MIDI clock pulses at a fixed tempo when the looper is the
// clock source instead of a DAW.
//
// Pulse N is scheduled at the absolute deadline start + N*60s/(BPM*24) rather
// than by chaining relative sleeps, so scheduler wake-up error stays bounded
// per pulse instead of accumulating into drift.
type Master struct {
	bpm  float64
	emit func(status byte, now time.Time)
}

// NewMaster returns a generator that calls emit for every pulse. emit runs on
// the generator goroutine and must not block.
func NewMaster(bpm float64, emit func(status byte, now time.Time)) *Master {
	if bpm <= 0 {
		bpm = 120
	}
	return &Master{bpm: bpm, emit: emit}
}

// BPM returns the target tempo.
func (m *Master) BPM() float64 { return m.bpm }

// Period returns the nominal time between pulses.
func (m *Master) Period() time.Duration {
	return time.Duration(float64(time.Minute) / (m.bpm * PPQN))
}

// Deadline returns the wall-clock time at which pulse n is due, measured
// from the generation start time.
func (m *Master) Deadline(start time.Time, n uint64) time.Time {
	offset := float64(n) * float64(time.Minute) / (m.bpm * PPQN)
	return start.Add(time.Duration(offset))
}

// Run emits pulses until ctx is cancelled. The wait is interruptible, so
// cancellation takes effect within one pulse period. Blocking; run in a
// goroutine.
func (m *Master) Run(ctx context.Context) {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for n := uint64(0); ; n++ {
		wait := time.Until(m.Deadline(start, n))
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.emit(MsgClock, time.Now())
		}
	}
}
