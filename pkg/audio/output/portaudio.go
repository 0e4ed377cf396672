//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using PortAudio
package output

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	stream *portaudio.Stream
	src    io.Reader
	buf    []byte
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Device {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format, src io.Reader) error {
	if format.BitDepth != 16 {
		return fmt.Errorf("portaudio output supports 16-bit only, got %d-bit", format.BitDepth)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.src = src
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), 0, p.callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	log.Infof("Audio output initialized: %dHz, %d channels (portaudio)", format.SampleRate, format.Channels)
	return stream.Start()
}

// callback pulls 16-bit PCM from the graph into the PortAudio buffer
func (p *PortAudio) callback(out []int16) {
	if cap(p.buf) < len(out)*2 {
		p.buf = make([]byte, len(out)*2)
	}
	buf := p.buf[:len(out)*2]

	n, _ := io.ReadFull(p.src, buf)
	for i := range out {
		if i*2+1 < n {
			out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		} else {
			out[i] = 0
		}
	}
}

// Suspend stops the stream
func (p *PortAudio) Suspend() error {
	if p.stream == nil {
		return fmt.Errorf("output not opened")
	}
	return p.stream.Stop()
}

// Resume restarts the stream
func (p *PortAudio) Resume() error {
	if p.stream == nil {
		return fmt.Errorf("output not opened")
	}
	return p.stream.Start()
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			return err
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
	}
	return portaudio.Terminate()
}
