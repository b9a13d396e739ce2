// midimon is a console tool for debugging MIDI traffic: it lists ports or
// watches one, printing every message with a decoded description and the
// tempo derived from incoming clock pulses.
package main

import (
	"fmt"
	"os"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"midi-looper/clock"
)

func main() {
	defer midi.CloseDriver()

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "watch":
		name := ""
		if len(os.Args) > 2 {
			name = os.Args[2]
		}
		watch(name)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Monitor")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List all MIDI ports")
	fmt.Println("  watch [name]  - Print traffic on a port (first port if omitted)")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.GetInPorts(), outs: midi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! MIDI driver is hung.")
	}
}

func watch(name string) {
	port, err := pickPort(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Connecting to: %s\n\n", port.String())
	fmt.Printf("%-14s %-14s %-18s %s\n", "TIMESTAMP", "TYPE", "DATA (HEX)", "DETAILS")

	// Clock pulses are frequent and uninteresting individually; fold them
	// into a once-a-beat tempo line via the same estimator the looper uses.
	clk := clock.NewState(4)

	start := time.Now()
	stop, err := midi.ListenTo(port, func(msg midi.Message, timestampms int32) {
		bytes := msg.Bytes()
		if len(bytes) == 0 {
			return
		}
		now := time.Now()
		if clock.IsRealtime(bytes[0]) {
			clk.Advance(bytes[0], now)
			if bytes[0] == clock.MsgClock {
				if clk.Pulses()%clock.PPQN == 0 {
					fmt.Printf("%-14s %-14s %-18s %.1f bpm\n",
						now.Sub(start).Truncate(time.Millisecond), "CLOCK", "F8", clk.BPM())
				}
				return
			}
		}
		typ, details := describe(bytes)
		fmt.Printf("%-14s %-14s %-18s %s\n",
			now.Sub(start).Truncate(time.Millisecond), typ, hex(bytes), details)
	}, midi.UseTimeCode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting: %v\n", err)
		os.Exit(1)
	}
	defer stop()

	fmt.Println("\nPress Enter to quit...")
	fmt.Scanln()
}

func pickPort(name string) (drivers.In, error) {
	ports := midi.GetInPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI input ports found")
	}
	if name == "" {
		return ports[0], nil
	}
	port, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("no input port matching %q", name)
	}
	return port, nil
}

func hex(data []byte) string {
	out := ""
	for i, b := range data {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%02X", b)
	}
	return out
}

func describe(data []byte) (string, string) {
	status := data[0]

	switch status {
	case clock.MsgStart:
		return "START", "start playback from beginning"
	case clock.MsgContinue:
		return "CONTINUE", "continue playback"
	case clock.MsgStop:
		return "STOP", "stop playback"
	case 0xFE:
		return "ACTIVE_SENSE", ""
	case 0xFF:
		return "RESET", ""
	}

	ch := status&0x0F + 1
	switch status & 0xF0 {
	case 0x80:
		if len(data) >= 3 {
			return "NOTE_OFF", fmt.Sprintf("ch:%d note:%s vel:%d", ch, noteName(data[1]), data[2])
		}
		return "NOTE_OFF", fmt.Sprintf("ch:%d", ch)
	case 0x90:
		if len(data) >= 3 {
			typ := "NOTE_ON"
			if data[2] == 0 {
				typ = "NOTE_OFF"
			}
			return typ, fmt.Sprintf("ch:%d note:%s vel:%d", ch, noteName(data[1]), data[2])
		}
		return "NOTE_ON", fmt.Sprintf("ch:%d", ch)
	case 0xA0:
		return "POLY_PRESSURE", fmt.Sprintf("ch:%d", ch)
	case 0xB0:
		if len(data) >= 3 {
			return "CONTROL_CHANGE", fmt.Sprintf("ch:%d cc:%d val:%d", ch, data[1], data[2])
		}
		return "CONTROL_CHANGE", fmt.Sprintf("ch:%d", ch)
	case 0xC0:
		if len(data) >= 2 {
			return "PROGRAM_CHANGE", fmt.Sprintf("ch:%d prog:%d", ch, data[1])
		}
		return "PROGRAM_CHANGE", fmt.Sprintf("ch:%d", ch)
	case 0xD0:
		return "CHANNEL_PRESSURE", fmt.Sprintf("ch:%d", ch)
	case 0xE0:
		if len(data) >= 3 {
			return "PITCH_BEND", fmt.Sprintf("ch:%d val:%d", ch, uint16(data[2])<<7|uint16(data[1]))
		}
		return "PITCH_BEND", fmt.Sprintf("ch:%d", ch)
	case 0xF0:
		return "SYSEX", fmt.Sprintf("%d bytes", len(data))
	}
	return "UNKNOWN", fmt.Sprintf("status 0x%02X", status)
}

func noteName(note byte) string {
	names := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	return fmt.Sprintf("%s%d", names[note%12], int(note/12)-1)
}
