// Package tui renders the looper state and routes transport keys.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"midi-looper/clock"
	"midi-looper/looper"
	"midi-looper/midi"
	"midi-looper/theme"
	"midi-looper/widgets"
)

// pollEvery is the display refresh cadence. The engine is polled read-only
// at this rate; the pulse path never waits on the UI.
const pollEvery = 50 * time.Millisecond

type Model struct {
	Engine *looper.Engine
	Ports  *midi.Manager
	Theme  *theme.Theme

	beatsPerBar int
	zeroIndexed bool
	quitting    bool
}

type tickMsg time.Time

// UpdateMsg is emitted when the engine reports a transport change.
type UpdateMsg struct{}

func NewModel(engine *looper.Engine, ports *midi.Manager, th *theme.Theme, beatsPerBar int, zeroIndexed bool) Model {
	if beatsPerBar < 1 {
		beatsPerBar = 4
	}
	return Model{
		Engine:      engine,
		Ports:       ports,
		Theme:       th,
		beatsPerBar: beatsPerBar,
		zeroIndexed: zeroIndexed,
	}
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ListenForUpdates wakes the TUI on transport changes between poll ticks.
func ListenForUpdates(engine *looper.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(pollCmd(), ListenForUpdates(m.Engine))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case " ":
			if m.Engine.Snapshot().Running {
				m.Engine.Stop()
			} else {
				m.Engine.Start()
			}

		case "c":
			m.Engine.Continue()

		case "m":
			m.Engine.SetMaster(!m.Engine.Master())

		case "r":
			m.Engine.ResetPlayer()
		}

	case tickMsg:
		return m, pollCmd()

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.Engine.Snapshot()
	inPort, outPort := m.Ports.Status()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())
	stopStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	mode := "SLAVE"
	if snap.Master {
		mode = "MASTER"
	}
	header := headerStyle.Render(fmt.Sprintf("midi-looper  %s", mode))

	transport := stopStyle.Render("⏹ STOPPED")
	if snap.Running {
		transport = playStyle.Render("▶ PLAYING")
	}

	connIn := warnStyle.Render("in:  (no input)")
	if inPort != "" {
		connIn = dimStyle.Render("in:  " + inPort)
	}
	connOut := warnStyle.Render("out: (no output)")
	if outPort != "" {
		connOut = dimStyle.Render("out: " + outPort)
	}

	position := fmt.Sprintf("%6.1f bpm   bar %d · beat %d", snap.BPM, snap.Bar, snap.Beat)

	loopLine := fmt.Sprintf("loop: %s  [%d/%d]  next in %s",
		snap.LoopName, snap.Iteration, snap.Repeats, m.countdown(snap.Remaining))

	help := dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeyBinding{
		{Key: "space", Desc: "start/stop"},
		{Key: "c", Desc: "continue"},
		{Key: "m", Desc: "clock mode"},
		{Key: "r", Desc: "rewind"},
		{Key: "q", Desc: "quit"},
	}))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("  ")
	out.WriteString(transport)
	out.WriteString("\n\n")
	out.WriteString(connIn)
	out.WriteString("\n")
	out.WriteString(connOut)
	out.WriteString("\n\n")
	out.WriteString(position)
	out.WriteString("\n")
	out.WriteString(loopLine)
	out.WriteString("\n\n")
	out.WriteString(help)
	out.WriteString("\n")

	return out.String()
}

// countdown formats the bars.beats remaining in the current loop iteration.
// 1-indexed by default (ends at 1.1); configurable to end at 0.0.
func (m Model) countdown(remaining uint64) string {
	if remaining == 0 {
		return "-"
	}
	idx := remaining - 1
	beats := idx / clock.PPQN
	bars := beats / uint64(m.beatsPerBar)
	beat := beats % uint64(m.beatsPerBar)
	off := uint64(1)
	if m.zeroIndexed {
		off = 0
	}
	return fmt.Sprintf("%d.%d", bars+off, beat+off)
}
