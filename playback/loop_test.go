package playback

import (
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestNewLoopSortsAndDrops(t *testing.T) {
	events := []LoopEvent{
		{Pos: 24, Data: []byte{0x90, 62, 100}},
		{Pos: 0, Data: []byte{0x90, 60, 100}},
		{Pos: 96, Data: []byte{0x90, 64, 100}}, // at length, would never fire
	}
	l := NewLoop("test", 96, 4, events)

	if len(l.Events) != 2 {
		t.Fatalf("got %d events, want 2 (out-of-range dropped)", len(l.Events))
	}
	if l.Events[0].Pos != 0 || l.Events[1].Pos != 24 {
		t.Errorf("events not sorted: positions %d, %d", l.Events[0].Pos, l.Events[1].Pos)
	}
}

func TestNewLoopDerivesLengthFromContent(t *testing.T) {
	// max position 100 is in the second 4/4 bar, so two bars
	l := NewLoop("test", 0, 4, []LoopEvent{{Pos: 100, Data: []byte{0x90, 60, 100}}})
	if l.Length != 192 {
		t.Errorf("Length = %d, want 192", l.Length)
	}

	// no events: still one bar long
	l = NewLoop("empty", 0, 4, nil)
	if l.Length != 96 {
		t.Errorf("empty loop Length = %d, want 96", l.Length)
	}
}

func TestLoopBars(t *testing.T) {
	l := NewLoop("test", 192, 4, nil)
	if got := l.Bars(4); got != 2 {
		t.Errorf("Bars(4) = %d, want 2", got)
	}
}

func TestWithChannel(t *testing.T) {
	l := NewLoop("test", 96, 4, []LoopEvent{
		{Pos: 0, Data: []byte{0x90, 60, 100}}, // note on, channel 0
		{Pos: 1, Data: []byte{0x83, 60, 0}},   // note off, channel 3
	})

	got := l.WithChannel(5)

	if got.Events[0].Data[0] != 0x95 || got.Events[1].Data[0] != 0x85 {
		t.Errorf("statuses = 0x%X, 0x%X, want 0x95, 0x85",
			got.Events[0].Data[0], got.Events[1].Data[0])
	}
	// the source loop must be untouched
	if l.Events[0].Data[0] != 0x90 {
		t.Error("WithChannel mutated the original loop")
	}
}

func writeTestSMF(t *testing.T, ppq uint16) string {
	t.Helper()

	var tr smf.Track
	tr.Add(0, midi.NoteOn(2, 60, 100))
	tr.Add(uint32(ppq)/2, midi.NoteOff(2, 60))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ppq)
	if err := s.Add(tr); err != nil {
		t.Fatalf("adding track: %v", err)
	}

	path := filepath.Join(t.TempDir(), "loop.mid")
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("writing SMF: %v", err)
	}
	return path
}

func TestLoadLoopConvertsResolution(t *testing.T) {
	path := writeTestSMF(t, 480)

	l, err := LoadLoop(path, 1, 4, -1)
	if err != nil {
		t.Fatalf("LoadLoop: %v", err)
	}

	if l.Name != "loop" {
		t.Errorf("Name = %q, want %q", l.Name, "loop")
	}
	if l.Length != 96 {
		t.Errorf("Length = %d, want 96 (one bar)", l.Length)
	}
	if len(l.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(l.Events))
	}
	// note off at 240 file ticks = half a quarter note = 12 pulses
	if l.Events[0].Pos != 0 || l.Events[1].Pos != 12 {
		t.Errorf("positions = %d, %d, want 0, 12", l.Events[0].Pos, l.Events[1].Pos)
	}
	if l.Events[0].Data[0]&0xF0 != 0x90 {
		t.Errorf("first event status = 0x%X, want a note on", l.Events[0].Data[0])
	}
}

func TestLoadLoopChannelOverride(t *testing.T) {
	path := writeTestSMF(t, 96)

	l, err := LoadLoop(path, 1, 4, 9)
	if err != nil {
		t.Fatalf("LoadLoop: %v", err)
	}
	for i, ev := range l.Events {
		if ev.Data[0]&0x0F != 9 {
			t.Errorf("event %d on channel %d, want 9", i, ev.Data[0]&0x0F)
		}
	}
}
