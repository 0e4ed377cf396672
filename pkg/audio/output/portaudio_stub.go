//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Device {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format, src io.Reader) error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Suspend stops the stream
func (p *PortAudio) Suspend() error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Resume restarts the stream
func (p *PortAudio) Resume() error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
