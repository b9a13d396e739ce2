package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	gomidi "gitlab.com/gomidi/midi/v2"

	"midi-looper/clock"
	"midi-looper/config"
	"midi-looper/debug"
	"midi-looper/looper"
	"midi-looper/midi"
	"midi-looper/playback"
	"midi-looper/theme"
	"midi-looper/tui"
)

func main() {
	logger := charmlog.New(os.Stderr)

	if os.Getenv("MIDI_LOOPER_DEBUG") != "" {
		if err := debug.Enable(); err != nil {
			logger.Warn("debug log unavailable", "err", err)
		}
		defer debug.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	channel := cfg.OutputChannel - 1 // -1 keeps file channels
	var entries []playback.Entry
	for _, slot := range cfg.Sequence {
		path := cfg.ResolveLoopPath(slot.LoopFile)
		loop, err := playback.LoadLoop(path, slot.Bars, cfg.BeatsPerBar, channel)
		if err != nil {
			logger.Error("skipping loop", "file", path, "err", err)
			continue
		}
		repeats := slot.Repeats
		if repeats == 0 {
			repeats = 1
		}
		entries = append(entries, playback.Entry{Loop: loop, Repeats: repeats})
	}
	if len(entries) == 0 {
		logger.Fatal("no playable loops configured", "config", mustConfigPath())
	}

	seq, err := playback.NewSequence(entries...)
	if err != nil {
		logger.Fatal("building sequence", "err", err)
	}

	clk := clock.NewState(cfg.BeatsPerBar)
	player := playback.NewPlayer(seq)
	engine := looper.New(clk, player, cfg.MasterBPM)
	defer engine.Close()
	defer gomidi.CloseDriver()

	ports := midi.NewManager(cfg.InputPort, cfg.OutputPort, engine.HandleInput)
	engine.SetOutput(ports.Send)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ports.Run(ctx)

	if cfg.Master {
		engine.SetMaster(true)
	}

	model := tui.NewModel(engine, ports, theme.Default(), cfg.BeatsPerBar, cfg.ZeroIndexedCountdown)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ports.SetOnChange(func() { p.Send(tui.UpdateMsg{}) })

	if _, err := p.Run(); err != nil {
		logger.Fatal("tui", "err", err)
	}
}

func mustConfigPath() string {
	path, err := config.ConfigPath()
	if err != nil {
		return "config.json"
	}
	return path
}
