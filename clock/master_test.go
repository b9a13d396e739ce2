package clock

import (
	"context"
	"testing"
	"time"
)

func TestMasterPeriod(t *testing.T) {
	m := NewMaster(120, nil)
	want := 20833333 * time.Nanosecond
	if got := m.Period(); got-want > time.Nanosecond || want-got > time.Nanosecond {
		t.Errorf("Period() = %v, want ~%v", got, want)
	}
}

func TestMasterDeadlinesDoNotDrift(t *testing.T) {
	m := NewMaster(120, nil)
	start := time.Now()

	// 2880 pulses at 120 BPM is exactly one minute; absolute scheduling
	// must land there regardless of per-pulse rounding.
	got := m.Deadline(start, 2880)
	want := start.Add(time.Minute)
	if diff := got.Sub(want); diff > time.Microsecond || diff < -time.Microsecond {
		t.Errorf("Deadline(2880) off by %v", diff)
	}

	got = m.Deadline(start, PPQN)
	want = start.Add(500 * time.Millisecond)
	if diff := got.Sub(want); diff > time.Microsecond || diff < -time.Microsecond {
		t.Errorf("Deadline(24) off by %v", diff)
	}
}

func TestMasterDefaultsBPM(t *testing.T) {
	if got := NewMaster(0, nil).BPM(); got != 120 {
		t.Errorf("BPM() = %v for zero input, want 120", got)
	}
	if got := NewMaster(-5, nil).BPM(); got != 120 {
		t.Errorf("BPM() = %v for negative input, want 120", got)
	}
}

func TestMasterRunEmitsAndStops(t *testing.T) {
	pulses := make(chan byte, 256)
	// 2500 BPM * 24 PPQN = 1ms per pulse, fast enough for a short test
	m := NewMaster(2500, func(status byte, now time.Time) {
		select {
		case pulses <- status:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for i := 0; i < 10; i++ {
		select {
		case status := <-pulses:
			if status != MsgClock {
				t.Fatalf("emitted 0x%X, want clock pulse", status)
			}
		case <-deadline:
			t.Fatal("timed out waiting for pulses")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
