// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM from the audio graph through a persistent oto player
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() Device {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format, src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// oto only supports 16-bit output
	if format.BitDepth != 16 {
		return fmt.Errorf("oto only supports 16-bit output, got %d-bit", format.BitDepth)
	}

	// oto allows one context per process; reuse it when the format matches
	if o.otoCtx != nil && (o.sampleRate != format.SampleRate || o.channels != format.Channels) {
		return fmt.Errorf("oto doesn't support reinitialization (%dHz %dch -> %dHz %dch)",
			o.sampleRate, o.channels, format.SampleRate, format.Channels)
	}

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = format.SampleRate
		o.channels = format.Channels
	}

	if o.player != nil {
		o.player.Close()
	}

	// Persistent player that pulls from the graph
	o.player = o.otoCtx.NewPlayer(src)
	o.player.Play()
	o.ready = true

	log.Infof("Audio output initialized: %dHz, %d channels (oto)", format.SampleRate, format.Channels)

	return nil
}

// Suspend pauses the oto context
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil {
		return fmt.Errorf("output not initialized")
	}
	return o.otoCtx.Suspend()
}

// Resume restarts the oto context
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil {
		return fmt.Errorf("output not initialized")
	}
	return o.otoCtx.Resume()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Warnf("oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil && o.ready {
		o.ready = false
		return o.otoCtx.Suspend()
	}
	return nil
}
