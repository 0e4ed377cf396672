// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends and backend selection
package output

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// Device represents an audio output device that pulls PCM from a reader
type Device interface {
	// Open initializes the device and starts pulling encoded PCM from src
	Open(format audio.Format, src io.Reader) error

	// Suspend pauses the hardware stream
	Suspend() error

	// Resume restarts a suspended stream
	Resume() error

	// Close releases output resources
	Close() error
}

// Backend names accepted by New
const (
	BackendOto       = "oto"
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// New returns the device for the named backend
func New(backend string) (Device, error) {
	switch backend {
	case "", BackendOto:
		return NewOto(), nil
	case BackendMalgo:
		return NewMalgo(), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	case BackendNull, "none":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", backend)
	}
}
