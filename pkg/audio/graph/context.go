// ABOUTME: Audio graph context owning the clock, the master gain and the mixer
// ABOUTME: Acts as the io.Reader output devices pull encoded PCM from
package graph

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/output"
)

// State is the lifecycle state of a Context
type State int

const (
	StateRunning State = iota
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Voice is anything that can be mixed into the graph
type Voice interface {
	// Render adds gain-scaled interleaved samples into dst.
	// Returns false once the voice has nothing more to play.
	Render(dst []float64, channels int) bool
}

// Config holds context configuration
type Config struct {
	// SampleRate of the graph (default: 48000)
	SampleRate int

	// Channels of the graph (default: 2)
	Channels int

	// BitDepth of the encoded output (default: 16)
	BitDepth int

	// Clock drives CurrentTime (default: real clock)
	Clock clockwork.Clock

	// StartSuspended creates the context suspended
	StartSuspended bool
}

// Context is the root of the audio graph
type Context struct {
	mu        sync.Mutex
	format    audio.Format
	clock     clockwork.Clock
	encoder   *encode.PCMEncoder
	device    output.Device
	master    *Gain
	voices    map[Voice]struct{}
	state     State
	elapsed   time.Duration
	resumedAt time.Time
	mix       []float64
	samples   []int32
}

// NewContext creates a context; attach a device to hear it
func NewContext(cfg Config) (*Context, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.BitDepth == 0 {
		cfg.BitDepth = 16
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	format := audio.Format{
		Codec:      "pcm",
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BitDepth:   cfg.BitDepth,
	}

	encoder, err := encode.NewPCM(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create output encoder: %w", err)
	}

	c := &Context{
		format:    format,
		clock:     cfg.Clock,
		encoder:   encoder,
		master:    &Gain{value: 1, root: true},
		voices:    make(map[Voice]struct{}),
		state:     StateRunning,
		resumedAt: cfg.Clock.Now(),
	}
	if cfg.StartSuspended {
		c.state = StateSuspended
	}

	return c, nil
}

// Attach opens the device so it pulls from this context
func (c *Context) Attach(device output.Device) error {
	if err := device.Open(c.format, c); err != nil {
		return err
	}

	c.mu.Lock()
	c.device = device
	suspended := c.state == StateSuspended
	c.mu.Unlock()

	if suspended {
		return device.Suspend()
	}
	return nil
}

// Format returns the graph output format
func (c *Context) Format() audio.Format { return c.format }

// SampleRate returns the graph sample rate
func (c *Context) SampleRate() int { return c.format.SampleRate }

// Clock returns the clock driving the context
func (c *Context) Clock() clockwork.Clock { return c.clock }

// Destination returns the master gain every voice ultimately feeds
func (c *Context) Destination() *Gain { return c.master }

// State returns the lifecycle state
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTime returns seconds of running time; it stands still while suspended
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.elapsed
	if c.state == StateRunning {
		elapsed += c.clock.Since(c.resumedAt)
	}
	return elapsed.Seconds()
}

// Suspend halts the clock and the device
func (c *Context) Suspend() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.elapsed += c.clock.Since(c.resumedAt)
	c.state = StateSuspended
	device := c.device
	c.mu.Unlock()

	if device != nil {
		if err := device.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend output: %w", err)
		}
	}
	return nil
}

// Resume restarts the clock and the device
func (c *Context) Resume() error {
	c.mu.Lock()
	if c.state != StateSuspended {
		c.mu.Unlock()
		return nil
	}
	c.resumedAt = c.clock.Now()
	c.state = StateRunning
	device := c.device
	c.mu.Unlock()

	if device != nil {
		if err := device.Resume(); err != nil {
			return fmt.Errorf("failed to resume output: %w", err)
		}
	}
	return nil
}

// Close stops all voices and releases the device
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateRunning {
		c.elapsed += c.clock.Since(c.resumedAt)
	}
	c.state = StateClosed
	c.voices = make(map[Voice]struct{})
	device := c.device
	c.device = nil
	c.mu.Unlock()

	if device != nil {
		return device.Close()
	}
	return nil
}

// Start adds a voice to the mix
func (c *Context) Start(v Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.voices[v] = struct{}{}
	}
}

// Stop removes a voice from the mix
func (c *Context) Stop(v Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.voices, v)
}

// Voices returns the number of voices being mixed
func (c *Context) Voices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voices)
}

// Read mixes every started voice into encoded PCM
func (c *Context) Read(p []byte) (int, error) {
	frameBytes := c.encoder.BytesPerSample() * c.format.Channels
	frames := len(p) / frameBytes
	total := frames * c.format.Channels

	c.mu.Lock()
	if cap(c.mix) < total {
		c.mix = make([]float64, total)
		c.samples = make([]int32, total)
	}
	mix := c.mix[:total]
	samples := c.samples[:total]
	voices := make([]Voice, 0, len(c.voices))
	if c.state == StateRunning {
		for v := range c.voices {
			voices = append(voices, v)
		}
	}
	c.mu.Unlock()

	for i := range mix {
		mix[i] = 0
	}

	// Voices are rendered without holding c.mu; they call back into Start/Stop
	var finished []Voice
	for _, v := range voices {
		if !v.Render(mix, c.format.Channels) {
			finished = append(finished, v)
		}
	}

	for i, v := range mix {
		samples[i] = audio.Clamp24(v)
	}

	if len(finished) > 0 {
		c.mu.Lock()
		for _, v := range finished {
			delete(c.voices, v)
		}
		c.mu.Unlock()
	}

	n := c.encoder.EncodeInto(p, samples)
	// Devices read whole frames; pad any partial tail with silence
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
