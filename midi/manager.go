// Package midi attaches the looper to hardware ports. It watches for the
// configured input and output, reconnecting as devices come and go, and
// turns the input stream into timestamped real-time status bytes for the
// engine.
package midi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"midi-looper/debug"
)

// ErrNoOutput is returned by Send while no output port is attached.
var ErrNoOutput = errors.New("no MIDI output attached")

// Handler receives each incoming status byte with its arrival time. It runs
// on the driver callback goroutine and must not block.
type Handler func(status byte, at time.Time)

// Manager keeps the configured input and output ports attached, polling for
// hot-plugged devices. An empty port name matches the first available port;
// otherwise the first port whose name contains the configured string wins.
type Manager struct {
	inName  string
	outName string
	handler Handler

	mu       sync.RWMutex
	stopIn   func()
	inPort   string
	send     func(gomidi.Message) error
	outPort  string
	onChange func()

	pollRate time.Duration
}

// NewManager creates a manager for the given port names. handler receives
// every status byte arriving on the attached input.
func NewManager(inName, outName string, handler Handler) *Manager {
	return &Manager{
		inName:   inName,
		outName:  outName,
		handler:  handler,
		pollRate: time.Second,
	}
}

// SetOnChange installs a callback invoked after a port attaches or detaches.
// Safe to call while Run is polling.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) notifyChange() {
	m.mu.RLock()
	fn := m.onChange
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Status returns the names of the currently attached ports, empty when
// detached.
func (m *Manager) Status() (in, out string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inPort, m.outPort
}

// Send transmits raw MIDI bytes on the attached output port.
func (m *Manager) Send(data []byte) error {
	m.mu.RLock()
	send := m.send
	m.mu.RUnlock()
	if send == nil {
		return ErrNoOutput
	}
	return send(gomidi.Message(data))
}

// Run starts the polling loop (blocking - run in goroutine).
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollRate)
	defer ticker.Stop()

	m.scan()

	for {
		select {
		case <-ctx.Done():
			m.detachInput()
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *Manager) scan() {
	// Enumerate ports with a timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var inPorts []drivers.In
	var outPorts []drivers.Out
	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		// driver is hung - skip this scan
		return
	}

	changed := false

	// Input
	m.mu.RLock()
	attachedIn := m.inPort
	m.mu.RUnlock()

	if attachedIn != "" && !hasInPort(inPorts, attachedIn) {
		m.detachInput()
		changed = true
		attachedIn = ""
	}
	if attachedIn == "" {
		if port := pickIn(inPorts, m.inName); port != nil {
			if m.attachInput(port) {
				changed = true
			}
		}
	}

	// Output
	m.mu.RLock()
	attachedOut := m.outPort
	m.mu.RUnlock()

	if attachedOut != "" && !hasOutPort(outPorts, attachedOut) {
		m.mu.Lock()
		m.send = nil
		m.outPort = ""
		m.mu.Unlock()
		debug.Log("ports", "output %q detached", attachedOut)
		changed = true
		attachedOut = ""
	}
	if attachedOut == "" {
		if port := pickOut(outPorts, m.outName); port != nil {
			send, err := gomidi.SendTo(port)
			if err != nil {
				debug.Log("ports", "opening output %q: %v", port.String(), err)
			} else {
				m.mu.Lock()
				m.send = send
				m.outPort = port.String()
				m.mu.Unlock()
				debug.Log("ports", "output %q attached", port.String())
				changed = true
			}
		}
	}

	if changed {
		m.notifyChange()
	}
}

// attachInput opens a listener on the port. UseTimeCode is required or the
// driver filters out the 0xF8 clock pulses we exist to receive.
func (m *Manager) attachInput(port drivers.In) bool {
	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
		bytes := msg.Bytes()
		if len(bytes) == 0 {
			return
		}
		m.handler(bytes[0], time.Now())
	}, gomidi.UseTimeCode())
	if err != nil {
		debug.Log("ports", "opening input %q: %v", port.String(), err)
		return false
	}

	m.mu.Lock()
	m.stopIn = stop
	m.inPort = port.String()
	m.mu.Unlock()
	debug.Log("ports", "input %q attached", port.String())
	return true
}

func (m *Manager) detachInput() {
	m.mu.Lock()
	stop := m.stopIn
	name := m.inPort
	m.stopIn = nil
	m.inPort = ""
	m.mu.Unlock()

	if stop != nil {
		stop()
		debug.Log("ports", "input %q detached", name)
	}
}

func pickIn(ports []drivers.In, name string) drivers.In {
	for _, p := range ports {
		if matchPort(p.String(), name) {
			return p
		}
	}
	return nil
}

func pickOut(ports []drivers.Out, name string) drivers.Out {
	for _, p := range ports {
		if matchPort(p.String(), name) {
			return p
		}
	}
	return nil
}

func hasInPort(ports []drivers.In, name string) bool {
	for _, p := range ports {
		if p.String() == name {
			return true
		}
	}
	return false
}

func hasOutPort(ports []drivers.Out, name string) bool {
	for _, p := range ports {
		if p.String() == name {
			return true
		}
	}
	return false
}

func matchPort(portName, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(portName), strings.ToLower(want))
}
