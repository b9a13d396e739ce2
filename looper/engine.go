// Package looper wires the clock and the sequence player into the playback
// pipeline and exposes the state the TUI polls.
package looper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"midi-looper/clock"
	"midi-looper/debug"
	"midi-looper/playback"
)

// Engine owns the pulse pipeline. Every real-time byte goes through
// clock.State.Advance, then — for a clock pulse while the transport runs —
// playback.Player.Tick, and the due events are written to the output before
// the next byte is processed. The pipeline runs on whichever goroutine
// delivers the byte: the driver callback in slave mode, the master clock
// generator in master mode. Only the pulse source differs; the downstream
// path is shared.
type Engine struct {
	Clock  *clock.State
	Player *playback.Player

	outMu sync.RWMutex
	out   func([]byte) error

	// master is read without locking by both the input callback and the
	// generator; a mode switch takes effect on the next pulse boundary of
	// whichever path observes it first.
	master    atomic.Bool
	masterBPM float64

	genMu     sync.Mutex
	genCancel context.CancelFunc

	// UpdateChan notifies the TUI that something display-worthy changed.
	UpdateChan chan struct{}
}

// New builds an engine around the given clock and player. masterBPM is the
// tempo used when generating the clock locally.
func New(clk *clock.State, pl *playback.Player, masterBPM float64) *Engine {
	if masterBPM <= 0 {
		masterBPM = 120
	}
	return &Engine{
		Clock:      clk,
		Player:     pl,
		masterBPM:  masterBPM,
		UpdateChan: make(chan struct{}, 1),
	}
}

// SetOutput installs the MIDI output sink. Safe to swap while running; a
// nil sink silently drops events.
func (e *Engine) SetOutput(send func([]byte) error) {
	e.outMu.Lock()
	e.out = send
	e.outMu.Unlock()
}

// HandleInput processes one real-time status byte from the external MIDI
// input. In master mode external bytes are logged for monitoring but never
// reach playback, so two time sources cannot fight over the transport.
func (e *Engine) HandleInput(status byte, now time.Time) {
	if !clock.IsRealtime(status) {
		return
	}
	if e.master.Load() {
		debug.LogEvery(96, "input", "ignoring external 0x%X while master", status)
		return
	}
	e.feed(status, now)
}

// feed is the single pipeline entry point shared by slave input, the master
// generator and UI transport commands. Advance completes before Tick, and
// Tick's events are written out before feed returns, preserving emission
// order within the driving goroutine.
func (e *Engine) feed(status byte, now time.Time) {
	e.Clock.Advance(status, now)

	switch status {
	case clock.MsgStart:
		e.Player.Reset()
		e.notify()
	case clock.MsgStop, clock.MsgContinue:
		e.notify()
	case clock.MsgClock:
		if !e.Clock.Running() {
			return
		}
		for _, data := range e.Player.Tick(e.Clock.Pulses()) {
			e.write(data)
		}
	}
}

// write sends raw bytes to the output sink. A failed send is logged and the
// clock keeps advancing: playback position is never rolled back because a
// device dropped a message.
func (e *Engine) write(data []byte) {
	e.outMu.RLock()
	send := e.out
	e.outMu.RUnlock()
	if send == nil {
		return
	}
	if err := send(data); err != nil {
		debug.Log("output", "send failed: %v", err)
	}
}

// writeRealtime forwards a transport/clock byte downstream so external gear
// can slave to us while we generate the clock.
func (e *Engine) writeRealtime(status byte) {
	e.write([]byte{status})
}

// Start requests transport start; equivalent to receiving an external START.
// In master mode it also starts the pulse generator and sends START
// downstream.
func (e *Engine) Start() {
	e.feed(clock.MsgStart, time.Now())
	if e.master.Load() {
		e.writeRealtime(clock.MsgStart)
		e.startGenerator()
	}
}

// Stop requests transport stop. In master mode the generator halts within
// one pulse period.
func (e *Engine) Stop() {
	e.feed(clock.MsgStop, time.Now())
	if e.master.Load() {
		e.stopGenerator()
		e.writeRealtime(clock.MsgStop)
	}
}

// Continue resumes playback without resetting positions.
func (e *Engine) Continue() {
	e.feed(clock.MsgContinue, time.Now())
	if e.master.Load() {
		e.writeRealtime(clock.MsgContinue)
		e.startGenerator()
	}
}

// ResetPlayer rewinds the sequence cursor without touching the transport.
func (e *Engine) ResetPlayer() {
	e.Player.Reset()
	e.notify()
}

// Master reports whether the engine generates its own clock.
func (e *Engine) Master() bool { return e.master.Load() }

// MasterBPM returns the tempo used in master mode.
func (e *Engine) MasterBPM() float64 { return e.masterBPM }

// SetMaster switches between slave and master clocking. Switching to master
// while the transport runs starts the generator; switching away stops it.
// An in-flight pulse from the old source is not retroactively discarded —
// each path checks the flag at its own next pulse.
func (e *Engine) SetMaster(on bool) {
	if e.master.Swap(on) == on {
		return
	}
	if on {
		if e.Clock.Running() {
			e.startGenerator()
		}
	} else {
		e.stopGenerator()
	}
	debug.Log("engine", "clock mode: master=%v", on)
	e.notify()
}

// Close stops the generator. The engine itself holds no other resources.
func (e *Engine) Close() {
	e.stopGenerator()
}

func (e *Engine) startGenerator() {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	if e.genCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.genCancel = cancel
	gen := clock.NewMaster(e.masterBPM, e.emitMaster)
	go gen.Run(ctx)
}

func (e *Engine) stopGenerator() {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	if e.genCancel != nil {
		e.genCancel()
		e.genCancel = nil
	}
}

// emitMaster forwards a generated pulse downstream and feeds it into the
// shared pipeline. The clock byte goes out before the tick's note events so
// slaved gear advances its position before hearing notes scheduled on that
// pulse. Pulses generated after a switch back to slave are dropped here, at
// the next pulse boundary.
func (e *Engine) emitMaster(status byte, now time.Time) {
	if !e.master.Load() {
		return
	}
	e.writeRealtime(status)
	e.feed(status, now)
}

// Snapshot is the read-only state the TUI renders.
type Snapshot struct {
	Running       bool
	SeenTransport bool
	Master        bool
	Bar           uint64
	Beat          uint64
	Tick          uint64
	Pulses        uint64
	BPM           float64
	LoopName      string
	Entry         int
	Iteration     uint32
	Repeats       uint32
	Remaining     uint64 // pulses left in the current loop iteration
}

// Snapshot collects the current display state. Each field is individually
// recent; no cross-field atomicity is promised, and stale-by-one-pulse
// reads are expected.
func (e *Engine) Snapshot() Snapshot {
	bar, beat, tick := e.Clock.Position()
	entry, iteration, repeats := e.Player.State()
	bpm := e.Clock.BPM()
	if e.master.Load() && bpm == 0 {
		bpm = e.masterBPM
	}
	return Snapshot{
		Running:       e.Clock.Running(),
		SeenTransport: e.Clock.SeenTransport(),
		Master:        e.master.Load(),
		Bar:           bar,
		Beat:          beat,
		Tick:          tick,
		Pulses:        e.Clock.Pulses(),
		BPM:           bpm,
		LoopName:      e.Player.CurrentLoopName(),
		Entry:         entry,
		Iteration:     iteration,
		Repeats:       repeats,
		Remaining:     e.Player.Remaining(),
	}
}

func (e *Engine) notify() {
	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}
