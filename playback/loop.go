// Package playback plays loaded MIDI loops in sync with the clock, chaining
// them into a repeating sequence.
package playback

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"midi-looper/clock"
)

// LoopEvent is one MIDI message within a loop.
type LoopEvent struct {
	Pos  uint64 // pulses from loop start (24 PPQN)
	Data []byte // raw MIDI bytes, status first
}

// Loop is an immutable, pre-normalized MIDI loop: events sorted ascending by
// position, with a known total length in pulses. Events are never mutated
// after construction; a channel override is applied once, up front.
type Loop struct {
	Name   string
	Length uint64
	Events []LoopEvent
}

// NewLoop builds a loop from raw events. Events are copied and stable-sorted
// by position; events at or past length would never fire and are dropped.
// A zero length is rounded up to one bar so an empty loop still takes time.
func NewLoop(name string, length uint64, beatsPerBar int, events []LoopEvent) *Loop {
	if beatsPerBar < 1 {
		beatsPerBar = 4
	}
	bar := uint64(beatsPerBar) * clock.PPQN
	if length == 0 {
		// derive from content: max event position rounded up to a bar
		var max uint64
		for _, ev := range events {
			if ev.Pos > max {
				max = ev.Pos
			}
		}
		length = (max/bar + 1) * bar
	}

	sorted := make([]LoopEvent, 0, len(events))
	for _, ev := range events {
		if ev.Pos < length {
			sorted = append(sorted, ev)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })

	return &Loop{Name: name, Length: length, Events: sorted}
}

// Bars returns the loop length in bars for the given time signature.
func (l *Loop) Bars(beatsPerBar int) uint64 {
	if beatsPerBar < 1 {
		beatsPerBar = 4
	}
	return l.Length / (uint64(beatsPerBar) * clock.PPQN)
}

// WithChannel returns a copy of the loop with every channel-voice message
// rewritten to the given MIDI channel (0-15).
func (l *Loop) WithChannel(ch uint8) *Loop {
	events := make([]LoopEvent, len(l.Events))
	for i, ev := range l.Events {
		data := append([]byte(nil), ev.Data...)
		if len(data) > 0 && data[0] >= 0x80 && data[0] < 0xF0 {
			data[0] = data[0]&0xF0 | ch&0x0F
		}
		events[i] = LoopEvent{Pos: ev.Pos, Data: data}
	}
	return &Loop{Name: l.Name, Length: l.Length, Events: events}
}

// LoadLoop reads a Standard MIDI File and converts it to a loop in the
// 24-PPQN clock domain. bars fixes the loop length (0 derives it from the
// content). channel overrides the output channel for every event when in
// 0-15; pass -1 to keep the channels stored in the file.
func LoadLoop(path string, bars uint64, beatsPerBar int, channel int) (*Loop, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l, err := loopFromSMF(name, s, bars, beatsPerBar)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if channel >= 0 && channel < 16 {
		l = l.WithChannel(uint8(channel))
	}
	return l, nil
}

// loopFromSMF converts parsed SMF data. Only playable channel messages are
// kept; meta events carry no wire bytes and are dropped.
func loopFromSMF(name string, s *smf.SMF, bars uint64, beatsPerBar int) (*Loop, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported time format %s (only metric ticks)", s.TimeFormat)
	}
	ppq := uint64(ticks.Resolution())
	if ppq == 0 {
		return nil, fmt.Errorf("file declares zero ticks per quarter note")
	}

	if beatsPerBar < 1 {
		beatsPerBar = 4
	}

	var events []LoopEvent
	for _, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			if !ev.Message.IsPlayable() {
				continue
			}
			events = append(events, LoopEvent{
				Pos:  tick * clock.PPQN / ppq,
				Data: append([]byte(nil), ev.Message.Bytes()...),
			})
		}
	}

	length := bars * uint64(beatsPerBar) * clock.PPQN
	return NewLoop(name, length, beatsPerBar, events), nil
}
