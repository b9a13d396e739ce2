package clock

import (
	"math"
	"testing"
	"time"
)

// pulseInterval is the spacing between clock pulses at 120 BPM:
// 60s / (120 * 24) = 20833µs.
const pulseInterval = 20833 * time.Microsecond

func TestAutoStartOnBareClock(t *testing.T) {
	s := NewState(4)
	if s.Running() {
		t.Fatal("new clock should be stopped")
	}

	s.Advance(MsgClock, time.Now())

	if !s.Running() {
		t.Error("bare clock pulse should auto-start playback")
	}
	if s.SeenTransport() {
		t.Error("auto-start must not count as an explicit transport message")
	}
	if s.Pulses() != 1 {
		t.Errorf("Pulses() = %d, want 1", s.Pulses())
	}
}

func TestStopPreventsAutoStart(t *testing.T) {
	s := NewState(4)
	s.Advance(MsgStop, time.Now())
	s.Advance(MsgClock, time.Now())

	if s.Running() {
		t.Error("clock pulse after explicit STOP must not start playback")
	}
	if s.Pulses() != 0 {
		t.Errorf("Pulses() = %d, want 0 while stopped", s.Pulses())
	}
}

func TestContinueResumes(t *testing.T) {
	s := NewState(4)
	now := time.Now()
	s.Advance(MsgStart, now)
	for i := 0; i < 10; i++ {
		now = now.Add(pulseInterval)
		s.Advance(MsgClock, now)
	}
	s.Advance(MsgStop, now)
	if s.Running() {
		t.Fatal("should be stopped")
	}

	s.Advance(MsgContinue, now)

	if !s.Running() {
		t.Error("CONTINUE should resume playback")
	}
	if s.Pulses() != 10 {
		t.Errorf("Pulses() = %d, want 10 preserved across stop/continue", s.Pulses())
	}
}

func TestStartResetsPosition(t *testing.T) {
	s := NewState(4)
	now := time.Now()
	s.Advance(MsgStart, now)
	for i := 0; i < 50; i++ {
		now = now.Add(pulseInterval)
		s.Advance(MsgClock, now)
	}
	if s.Pulses() != 50 {
		t.Fatalf("Pulses() = %d, want 50", s.Pulses())
	}
	if s.BPM() == 0 {
		t.Fatal("expected a BPM estimate before restart")
	}

	s.Advance(MsgStart, now)

	if s.Pulses() != 0 {
		t.Errorf("START should reset pulses, got %d", s.Pulses())
	}
	if s.BPM() != 0 {
		t.Errorf("START should reset the BPM estimate, got %v", s.BPM())
	}
}

func TestPosition(t *testing.T) {
	s := NewState(4)
	now := time.Now()
	s.Advance(MsgStart, now)

	bar, beat, tick := s.Position()
	if bar != 1 || beat != 1 || tick != 0 {
		t.Errorf("at start: bar %d beat %d tick %d, want 1 1 0", bar, beat, tick)
	}

	// one full 4/4 bar plus one beat plus one pulse
	for i := 0; i < 5*PPQN+1; i++ {
		now = now.Add(pulseInterval)
		s.Advance(MsgClock, now)
	}
	bar, beat, tick = s.Position()
	if bar != 2 || beat != 2 || tick != 1 {
		t.Errorf("after 121 pulses: bar %d beat %d tick %d, want 2 2 1", bar, beat, tick)
	}
}

func TestPositionOddMeter(t *testing.T) {
	s := NewState(3)
	now := time.Now()
	s.Advance(MsgStart, now)
	for i := 0; i < 3*PPQN; i++ {
		now = now.Add(pulseInterval)
		s.Advance(MsgClock, now)
	}
	bar, beat, _ := s.Position()
	if bar != 2 || beat != 1 {
		t.Errorf("after one 3/4 bar: bar %d beat %d, want 2 1", bar, beat)
	}
}

func TestBPMEstimate(t *testing.T) {
	s := NewState(4)
	now := time.Now()
	s.Advance(MsgStart, now)

	// two full windows of pulses 20833µs apart: 120 BPM
	for i := 0; i < 2*bpmWindow; i++ {
		now = now.Add(pulseInterval)
		s.Advance(MsgClock, now)
	}

	if got := s.BPM(); math.Abs(got-120) > 0.1 {
		t.Errorf("BPM() = %v, want ~120", got)
	}
}

func TestBPMNeedsTwoSamples(t *testing.T) {
	s := NewState(4)
	s.Advance(MsgClock, time.Now())
	if s.BPM() != 0 {
		t.Errorf("BPM() = %v with a single sample, want 0", s.BPM())
	}
}

func TestBPMWhileStopped(t *testing.T) {
	s := NewState(4)
	now := time.Now()
	s.Advance(MsgStop, now)
	for i := 0; i < bpmWindow; i++ {
		now = now.Add(pulseInterval)
		s.Advance(MsgClock, now)
	}

	if got := s.BPM(); math.Abs(got-120) > 0.1 {
		t.Errorf("BPM() = %v while stopped, want ~120", got)
	}
	if s.Pulses() != 0 {
		t.Errorf("Pulses() = %d while stopped, want 0", s.Pulses())
	}
}

func TestUnknownByteIgnored(t *testing.T) {
	s := NewState(4)
	now := time.Now()
	s.Advance(MsgStart, now)
	s.Advance(MsgClock, now.Add(pulseInterval))

	s.Advance(0x90, now.Add(2*pulseInterval)) // note on, not real-time
	s.Advance(0xFE, now.Add(3*pulseInterval)) // active sensing

	if !s.Running() || s.Pulses() != 1 {
		t.Errorf("unknown bytes changed state: running=%v pulses=%d", s.Running(), s.Pulses())
	}
}

func TestIsRealtime(t *testing.T) {
	for _, b := range []byte{MsgClock, MsgStart, MsgContinue, MsgStop} {
		if !IsRealtime(b) {
			t.Errorf("IsRealtime(0x%X) = false", b)
		}
	}
	for _, b := range []byte{0x00, 0x90, 0xF0, 0xFE, 0xFF} {
		if IsRealtime(b) {
			t.Errorf("IsRealtime(0x%X) = true", b)
		}
	}
}

func TestTimeBufferPartial(t *testing.T) {
	var b TimeBuffer
	if _, _, ok := b.Oldest(); ok {
		t.Fatal("empty buffer reported a sample")
	}

	base := time.Now()
	b.Push(base)
	b.Push(base.Add(time.Second))

	oldest, n, ok := b.Oldest()
	if !ok || n != 2 || !oldest.Equal(base) {
		t.Errorf("Oldest() = %v %d %v, want base 2 true", oldest, n, ok)
	}
}

func TestTimeBufferOverflow(t *testing.T) {
	var b TimeBuffer
	base := time.Now()
	for i := 0; i < bpmWindow+5; i++ {
		b.Push(base.Add(time.Duration(i) * time.Second))
	}

	oldest, n, _ := b.Oldest()
	if n != bpmWindow {
		t.Errorf("Len after overflow = %d, want %d", n, bpmWindow)
	}
	want := base.Add(5 * time.Second)
	if !oldest.Equal(want) {
		t.Errorf("Oldest() = %v, want %v", oldest, want)
	}
}
