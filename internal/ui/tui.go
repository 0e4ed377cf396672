// ABOUTME: TUI initialization and control channels
// ABOUTME: Wraps the bubbletea program and forwards key commands to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

const maxRate = 5.0

// CommandKind names a player command
type CommandKind int

const (
	CommandTogglePlay CommandKind = iota
	CommandStop
	CommandSeek
	CommandRate
	CommandVolume
	CommandMute
	CommandLoop
)

// Command is a request from the TUI. Value carries the seek position in
// seconds, the rate, the volume (0 to 1), or 1/0 for toggles.
type Command struct {
	Kind  CommandKind
	Value float64
}

// QuitMsg signals that the user asked to quit
type QuitMsg struct{}

// Controls holds channels carrying user input out of the TUI
type Controls struct {
	Commands chan Command
	Quit     chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 10),
		Quit:     make(chan QuitMsg, 1),
	}
}

// send drops the command when nobody is keeping up
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:      100,
		rate:        1,
		state:       "idle",
		engineState: "not-ready",
		controls:    controls,
	}
}

// Run creates the TUI program; the caller starts it
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
