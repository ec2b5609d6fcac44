// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it drives the player with
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a transport control requested from the keyboard
type Action int

const (
	ActionStart Action = iota
	ActionStop
	ActionToggleRecording
	ActionClearLoops
	ActionClearAmbience
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionToggleRecording:
		return "toggle-recording"
	case ActionClearLoops:
		return "clear-loops"
	case ActionClearAmbience:
		return "clear-ambience"
	default:
		return "unknown"
	}
}

// QuitMsg signals that the user asked to quit
type QuitMsg struct{}

// Controls holds channels for UI to player communication
type Controls struct {
	Actions chan Action
	Quit    chan QuitMsg
}

// NewControls creates a new control channel set
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// Feed is the waveform source redrawn every frame
type Feed interface {
	Snapshot() []float32
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls, feed Feed) Model {
	return Model{
		connection: "disconnected",
		ctrl:       ctrl,
		feed:       feed,
	}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Controls, feed Feed) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl, feed), tea.WithAltScreen())
	return p, nil
}
