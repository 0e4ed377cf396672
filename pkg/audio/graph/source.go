// ABOUTME: One-shot buffer source voice for decoded audio
// ABOUTME: Plays a region of a buffer at a variable rate with linear interpolation
package graph

import (
	"math"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// BufferSource plays a decoded buffer once. It cannot be restarted after Stop.
type BufferSource struct {
	ctx *Context

	mu      sync.Mutex
	buf     *audio.Buffer
	out     *Gain
	pos     float64
	end     float64
	rate    float64
	started bool
	done    bool
	onEnded func()
}

// NewBufferSource creates a source for buf
func (c *Context) NewBufferSource(buf *audio.Buffer) *BufferSource {
	return &BufferSource{
		ctx:  c,
		buf:  buf,
		rate: 1,
	}
}

// Connect routes the source into a gain node
func (s *BufferSource) Connect(g *Gain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = g
}

// Disconnect detaches the source from its gain node
func (s *BufferSource) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
}

// OnEnded registers a callback fired once when playback finishes or is stopped
func (s *BufferSource) OnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = fn
}

// Start begins playback at offset seconds for duration seconds.
// A non-positive duration plays to the end of the buffer.
func (s *BufferSource) Start(offset, duration float64) {
	s.mu.Lock()
	if s.started || s.done {
		s.mu.Unlock()
		return
	}

	frames := float64(s.buf.Frames())
	rate := float64(s.buf.Format.SampleRate)
	if rate <= 0 {
		rate = float64(s.ctx.SampleRate())
	}

	s.pos = clampFrames(math.Round(offset*rate), frames)
	s.end = frames
	if duration > 0 {
		s.end = clampFrames(s.pos+math.Round(duration*rate), frames)
	}
	s.started = true
	s.mu.Unlock()

	s.ctx.Start(s)
}

// Stop ends playback; the ended callback fires if playback was running
func (s *BufferSource) Stop() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	started := s.started
	fn := s.onEnded
	s.mu.Unlock()

	s.ctx.Stop(s)
	if started && fn != nil {
		fn()
	}
}

// SetPlaybackRate changes the playback speed
func (s *BufferSource) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
}

// PlaybackRate returns the playback speed
func (s *BufferSource) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Position returns the playhead in seconds
func (s *BufferSource) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Format.SampleRate <= 0 {
		return 0
	}
	return s.pos / float64(s.buf.Format.SampleRate)
}

// Playing reports whether the source is started and not yet finished
func (s *BufferSource) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.done
}

// Render implements Voice
func (s *BufferSource) Render(dst []float64, channels int) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}

	level := 0.0
	if s.out != nil {
		level = s.out.Level()
	}

	step := s.rate
	if bufRate := s.buf.Format.SampleRate; bufRate > 0 {
		step *= float64(bufRate) / float64(s.ctx.SampleRate())
	}

	frames := len(dst) / channels
	for f := 0; f < frames; f++ {
		if s.pos >= s.end {
			break
		}
		i := int(s.pos)
		frac := s.pos - float64(i)
		for ch := 0; ch < channels; ch++ {
			a := float64(s.buf.Frame(i, ch))
			b := a
			if float64(i+1) < s.end {
				b = float64(s.buf.Frame(i+1, ch))
			}
			dst[f*channels+ch] += (a + (b-a)*frac) * level
		}
		s.pos += step
	}

	if s.pos < s.end {
		s.mu.Unlock()
		return true
	}

	s.done = true
	fn := s.onEnded
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return false
}

func clampFrames(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
