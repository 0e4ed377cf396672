// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Holds sound and pool state and turns key presses into commands
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const (
	seekStep   = 5.0
	rateStep   = 0.25
	volumeStep = 5
)

// Model represents the TUI state
type Model struct {
	// Resource
	resource string
	stream   bool

	// Playback
	state    string
	position float64
	duration float64
	rate     float64
	loop     bool
	volume   int
	muted    bool

	// Engine
	engineState string
	handles     int
	bound       int
	lastEvent   string
	err         string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderPlayback())
	b.WriteString(m.renderControls())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	if m.err != "" {
		b.WriteString(errorStyle.Render("Error: "+truncate(m.err, 60)) + "\n")
	}

	b.WriteString(m.renderHelp())

	return frameStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// renderHeader renders the resource and engine state
func (m Model) renderHeader() string {
	mode := "buffer"
	if m.stream {
		mode = "stream"
	}

	return fmt.Sprintf("%s\n%s %s (%s)\n%s %s\n\n",
		titleStyle.Render("buzz player"),
		labelStyle.Render("Resource:"), truncate(m.resource, 48), mode,
		labelStyle.Render("Engine:  "), m.engineState)
}

// renderPlayback renders state and progress
func (m Model) renderPlayback() string {
	progress := 0
	if m.duration > 0 {
		progress = int(m.position / m.duration * 100)
	}

	loop := ""
	if m.loop {
		loop = " [loop]"
	}

	return fmt.Sprintf("%s %s%s\n%s [%s] %s / %s\n",
		labelStyle.Render("State:   "), m.state, loop,
		labelStyle.Render("Position:"), renderBar(progress, 100, 30),
		formatTime(m.position), formatTime(m.duration))
}

// renderControls renders volume and rate
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	return fmt.Sprintf("%s [%s] %d%%%s\n%s %.2fx\n\n",
		labelStyle.Render("Volume:  "), renderBar(m.volume, 100, 10), m.volume, muteIcon,
		labelStyle.Render("Rate:    "), m.rate)
}

// renderDebug renders pool information
func (m Model) renderDebug() string {
	return fmt.Sprintf("%s handles: %d  bound: %d  last event: %s\n\n",
		labelStyle.Render("DEBUG:"), m.handles, m.bound, m.lastEvent)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return labelStyle.Render("space:Play/Pause  s:Stop  ←/→:Seek  [/]:Rate  ↑/↓:Volume\nm:Mute  l:Loop  d:Debug  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case " ":
		m.controls.send(Command{Kind: CommandTogglePlay})
	case "s":
		m.controls.send(Command{Kind: CommandStop})
	case "left":
		m.controls.send(Command{Kind: CommandSeek, Value: clampFloat(m.position-seekStep, 0, m.duration)})
	case "right":
		if m.duration > 0 && m.position+seekStep < m.duration {
			m.controls.send(Command{Kind: CommandSeek, Value: m.position + seekStep})
		}
	case "[":
		m.rate = clampFloat(m.rate-rateStep, rateStep, maxRate)
		m.controls.send(Command{Kind: CommandRate, Value: m.rate})
	case "]":
		m.rate = clampFloat(m.rate+rateStep, rateStep, maxRate)
		m.controls.send(Command{Kind: CommandRate, Value: m.rate})
	case "up":
		m.volume = clampInt(m.volume+volumeStep, 0, 100)
		m.controls.send(Command{Kind: CommandVolume, Value: float64(m.volume) / 100})
	case "down":
		m.volume = clampInt(m.volume-volumeStep, 0, 100)
		m.controls.send(Command{Kind: CommandVolume, Value: float64(m.volume) / 100})
	case "m":
		m.muted = !m.muted
		m.controls.send(Command{Kind: CommandMute, Value: boolValue(m.muted)})
	case "l":
		m.loop = !m.loop
		m.controls.send(Command{Kind: CommandLoop, Value: boolValue(m.loop)})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Resource != "" {
		m.resource = msg.Resource
		m.stream = msg.Stream
	}
	if msg.State != "" {
		m.state = msg.State
		m.position = msg.Position
		m.duration = msg.Duration
	}
	if msg.EngineState != "" {
		m.engineState = msg.EngineState
	}
	if msg.Rate > 0 {
		m.rate = msg.Rate
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Loop != nil {
		m.loop = *msg.Loop
	}
	if msg.Handles != nil {
		m.handles = *msg.Handles
		m.bound = msg.Bound
	}
	if msg.Event != "" {
		m.lastEvent = msg.Event
	}
	if msg.Err != "" {
		m.err = msg.Err
	}
}

// StatusMsg updates TUI state; zero fields are left unchanged
type StatusMsg struct {
	Resource    string
	Stream      bool
	State       string
	Position    float64
	Duration    float64
	EngineState string
	Rate        float64
	Volume      *int
	Muted       *bool
	Loop        *bool
	Handles     *int
	Bound       int
	Event       string
	Err         string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatTime(seconds float64) string {
	if seconds <= 0 {
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > lo && v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
