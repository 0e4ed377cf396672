// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering helpers
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func intPtr(v int) *int { return &v }

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func nextCommand(t *testing.T, c *Controls) Command {
	t.Helper()
	select {
	case cmd := <-c.Commands:
		return cmd
	default:
		t.Fatal("expected a command")
		return Command{}
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.volume != 100 {
		t.Errorf("expected default volume 100, got %d", model.volume)
	}

	if model.rate != 1 {
		t.Errorf("expected default rate 1, got %v", model.rate)
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}

	if model.state != "idle" {
		t.Errorf("expected state 'idle', got '%s'", model.state)
	}
}

func TestStatusMsgPlayback(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Resource: "music/theme.mp3",
		Stream:   true,
		State:    "playing",
		Position: 12.5,
		Duration: 180,
	})

	if model.resource != "music/theme.mp3" || !model.stream {
		t.Errorf("resource not applied: %q stream=%v", model.resource, model.stream)
	}

	if model.state != "playing" {
		t.Errorf("expected state 'playing', got '%s'", model.state)
	}

	if model.position != 12.5 || model.duration != 180 {
		t.Errorf("expected 12.5/180, got %v/%v", model.position, model.duration)
	}
}

func TestStatusMsgZeroValues(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Volume: intPtr(75), Rate: 2, Event: "play"})
	model.applyStatus(StatusMsg{})

	if model.volume != 75 {
		t.Errorf("volume should be kept, got %d", model.volume)
	}

	if model.rate != 2 {
		t.Errorf("rate should be kept, got %v", model.rate)
	}

	if model.lastEvent != "play" {
		t.Errorf("last event should be kept, got %q", model.lastEvent)
	}

	// Zero volume is valid when sent explicitly
	model.applyStatus(StatusMsg{Volume: intPtr(0)})
	if model.volume != 0 {
		t.Errorf("expected volume 0, got %d", model.volume)
	}
}

func TestStatusMsgPool(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Handles: intPtr(3), Bound: 2, EngineState: "ready"})

	if model.handles != 3 || model.bound != 2 {
		t.Errorf("expected 3 handles, 2 bound, got %d/%d", model.handles, model.bound)
	}

	if model.engineState != "ready" {
		t.Errorf("expected engine state 'ready', got '%s'", model.engineState)
	}
}

func TestStatusMsgToggles(t *testing.T) {
	model := NewModel(nil)
	on := true

	model.applyStatus(StatusMsg{Loop: &on, Muted: &on})
	if !model.loop || !model.muted {
		t.Errorf("expected loop and muted, got loop=%v muted=%v", model.loop, model.muted)
	}

	model.applyStatus(StatusMsg{Event: "seek"})
	if !model.loop || !model.muted {
		t.Error("nil toggles should leave state unchanged")
	}
}

func TestKeyCommands(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)
	model.applyStatus(StatusMsg{State: "playing", Position: 10, Duration: 60})

	tests := []struct {
		key  string
		want Command
	}{
		{" ", Command{Kind: CommandTogglePlay}},
		{"s", Command{Kind: CommandStop}},
		{"right", Command{Kind: CommandSeek, Value: 15}},
		{"left", Command{Kind: CommandSeek, Value: 5}},
		{"]", Command{Kind: CommandRate, Value: 1.25}},
		{"down", Command{Kind: CommandVolume, Value: 0.95}},
		{"m", Command{Kind: CommandMute, Value: 1}},
		{"l", Command{Kind: CommandLoop, Value: 1}},
	}

	for _, tt := range tests {
		model = press(model, tt.key)
		got := nextCommand(t, controls)
		if got != tt.want {
			t.Errorf("key %q: got %+v, expected %+v", tt.key, got, tt.want)
		}
	}

	if !model.muted || !model.loop {
		t.Error("expected mute and loop toggled on")
	}
}

func TestVolumeClamped(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model = press(model, "up")
	if model.volume != 100 {
		t.Errorf("expected volume to stay at 100, got %d", model.volume)
	}
	if got := nextCommand(t, controls); got.Value != 1 {
		t.Errorf("expected volume 1, got %v", got.Value)
	}
}

func TestRateClamped(t *testing.T) {
	model := NewModel(nil)

	for i := 0; i < 10; i++ {
		model = press(model, "[")
	}
	if model.rate != rateStep {
		t.Errorf("expected rate %v, got %v", rateStep, model.rate)
	}

	for i := 0; i < 40; i++ {
		model = press(model, "]")
	}
	if model.rate != maxRate {
		t.Errorf("expected rate %v, got %v", maxRate, model.rate)
	}
}

func TestSeekPastEndIgnored(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)
	model.applyStatus(StatusMsg{State: "playing", Position: 58, Duration: 60})

	press(model, "right")

	select {
	case cmd := <-controls.Commands:
		t.Errorf("unexpected command %+v", cmd)
	default:
	}
}

func TestQuit(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	select {
	case <-controls.Quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestView(t *testing.T) {
	model := NewModel(nil)
	if model.View() != "Loading..." {
		t.Error("expected loading view before first resize")
	}

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = updated.(Model)
	model.applyStatus(StatusMsg{Resource: "sfx/laser.wav", State: "paused", Position: 65, Duration: 130})

	view := model.View()
	for _, want := range []string{"sfx/laser.wav", "paused", "1:05", "2:10"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max, width int
		expected          string
	}{
		{0, 100, 4, "░░░░"},
		{50, 100, 4, "██░░"},
		{100, 100, 4, "████"},
		{150, 100, 4, "████"},
	}

	for _, tt := range tests {
		result := renderBar(tt.value, tt.max, tt.width)
		if result != tt.expected {
			t.Errorf("renderBar(%d, %d, %d) = %q, expected %q",
				tt.value, tt.max, tt.width, result, tt.expected)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00"},
		{-1, "0:00"},
		{9.9, "0:09"},
		{61, "1:01"},
		{3600, "60:00"},
	}

	for _, tt := range tests {
		if result := formatTime(tt.seconds); result != tt.expected {
			t.Errorf("formatTime(%v) = %q, expected %q", tt.seconds, result, tt.expected)
		}
	}
}
