// ABOUTME: Streaming media element that decodes audio while it plays
// ABOUTME: Pulls PCM chunks from a background decoder into the audio graph
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/graph"
)

const (
	chunkFrames    = 4096
	bufferedChunks = 8
)

var (
	// ErrNoSource is returned when an element has no source to load
	ErrNoSource = errors.New("media element has no source")

	// ErrClosed is returned by operations on a closed element
	ErrClosed = errors.New("media element closed")
)

// Event is a notification from an element
type Event int

const (
	// EventCanPlayThrough fires once enough data is buffered to start playing
	EventCanPlayThrough Event = iota
	// EventError fires when opening or decoding fails
	EventError
	// EventEnded fires when playback reaches the end of the source
	EventEnded
)

func (e Event) String() string {
	switch e {
	case EventCanPlayThrough:
		return "canplaythrough"
	case EventError:
		return "error"
	case EventEnded:
		return "ended"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Listener receives element events; err is set for EventError
type Listener func(ev Event, err error)

// Element streams one source into the graph
type Element struct {
	graph  *graph.Context
	opener Opener
	gain   *graph.Gain
	wg     sync.WaitGroup

	mu        sync.Mutex
	src       string
	format    audio.Format
	frames    int64
	ready     bool
	playing   bool
	ended     bool
	drained   bool
	closed    bool
	volume    float64
	muted     bool
	rate      float64
	pos       float64
	start     float64
	chunk     []int32
	chunkPos  float64
	chunks    chan []int32
	cancel    context.CancelFunc
	gen       uint64
	err       error
	listeners map[int]Listener
	nextID    int
}

// New creates an element whose output feeds the graph destination
func New(g *graph.Context, opener Opener) *Element {
	gain := graph.NewGain(1)
	gain.Connect(g.Destination())

	return &Element{
		graph:     g,
		opener:    opener,
		gain:      gain,
		volume:    1,
		rate:      1,
		frames:    -1,
		listeners: make(map[int]Listener),
	}
}

// Connect routes the element output into dst instead of the destination
func (e *Element) Connect(dst *graph.Gain) {
	e.gain.Connect(dst)
}

// Src returns the current source
func (e *Element) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// SetSrc changes the source; any playback or loading is abandoned
func (e *Element) SetSrc(src string) {
	e.mu.Lock()
	if src == e.src {
		e.mu.Unlock()
		return
	}
	e.stopSession()
	e.src = src
	e.err = nil
	e.pos = 0
	e.frames = -1
	wasPlaying := e.playing
	e.playing = false
	e.mu.Unlock()

	if wasPlaying {
		e.graph.Stop(e)
	}
}

// Load starts buffering the source from the beginning
func (e *Element) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.src == "" {
		return ErrNoSource
	}
	e.startSession(0)
	return nil
}

// Ready reports whether enough data is buffered to play through
func (e *Element) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Err returns the last load or decode error
func (e *Element) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Play starts or resumes playback; playback waits for buffering if needed
func (e *Element) Play() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.src == "" {
		e.mu.Unlock()
		return ErrNoSource
	}
	if e.ended {
		e.startSession(0)
	} else if e.chunks == nil {
		e.startSession(e.pos)
	}
	e.playing = true
	e.mu.Unlock()

	e.graph.Start(e)
	return nil
}

// Pause halts playback at the current position
func (e *Element) Pause() {
	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()

	e.graph.Stop(e)
}

// Paused reports whether the element is not playing
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.playing
}

// Ended reports whether playback reached the end of the source
func (e *Element) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// CurrentTime returns the playback position in seconds
func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// SetCurrentTime moves the playback position. The element rebuffers
// and fires EventCanPlayThrough again unless it is already there.
func (e *Element) SetCurrentTime(t float64) {
	if t < 0 {
		t = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.src == "" {
		e.pos = t
		return
	}
	if e.chunks != nil && !e.ended && t == e.start && e.pos == e.start {
		return
	}
	e.startSession(t)
}

// Duration returns the source length in seconds, or 0 when unknown
func (e *Element) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frames <= 0 || e.format.SampleRate == 0 {
		return 0
	}
	return float64(e.frames) / float64(e.format.SampleRate)
}

// PlaybackRate returns the playback speed
func (e *Element) PlaybackRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// SetPlaybackRate changes the playback speed; non-positive rates are ignored
func (e *Element) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = rate
}

// Volume returns the element volume
func (e *Element) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume sets the element volume, clamped to [0, 1]
func (e *Element) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	e.applyGain()
}

// Muted reports whether the element is muted
func (e *Element) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// SetMuted mutes or unmutes the element
func (e *Element) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	e.applyGain()
}

// Subscribe registers a listener and returns a function removing it
func (e *Element) Subscribe(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Close stops playback, releases the decoder and drops listeners
func (e *Element) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.playing = false
	e.stopSession()
	e.listeners = make(map[int]Listener)
	e.mu.Unlock()

	e.graph.Stop(e)
	e.gain.Disconnect()
	e.wg.Wait()
	return nil
}

// Render implements graph.Voice
func (e *Element) Render(dst []float64, channels int) bool {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return false
	}
	if !e.ready {
		e.mu.Unlock()
		return true
	}

	level := e.gain.Level()
	srcChannels := e.format.Channels
	step := e.rate * float64(e.format.SampleRate) / float64(e.graph.SampleRate())
	advance := e.rate / float64(e.graph.SampleRate())

	frames := len(dst) / channels
	for f := 0; f < frames; f++ {
		if !e.fill() {
			break
		}
		i := int(e.chunkPos) * srcChannels
		for ch := 0; ch < channels; ch++ {
			c := ch
			if c >= srcChannels {
				c = srcChannels - 1
			}
			dst[f*channels+ch] += float64(e.chunk[i+c]) * level
		}
		e.chunkPos += step
		e.pos += advance
	}

	if !e.drained {
		e.mu.Unlock()
		return true
	}

	e.playing = false
	e.ended = true
	listeners := e.snapshot()
	e.mu.Unlock()

	notify(listeners, EventEnded, nil)
	return false
}

// fill makes sure the current chunk holds the frame at chunkPos.
// Returns false on underrun or once the decoder is drained.
func (e *Element) fill() bool {
	for e.chunk == nil || int(e.chunkPos) >= len(e.chunk)/e.format.Channels {
		if e.chunk != nil {
			e.chunkPos -= float64(len(e.chunk) / e.format.Channels)
			e.chunk = nil
		}
		select {
		case next, ok := <-e.chunks:
			if !ok {
				e.drained = true
				return false
			}
			e.chunk = next
		default:
			return false
		}
	}
	return true
}

// startSession abandons the current decoder and starts buffering at t seconds.
// Caller holds e.mu.
func (e *Element) startSession(t float64) {
	e.stopSession()

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan []int32, bufferedChunks)

	e.cancel = cancel
	e.chunks = ch
	e.pos = t
	e.start = t
	e.err = nil

	gen := e.gen
	src := e.src
	e.wg.Add(1)
	go e.pump(ctx, gen, src, t, ch)
}

// stopSession cancels the decoder goroutine. Caller holds e.mu.
func (e *Element) stopSession() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.chunks = nil
	e.chunk = nil
	e.chunkPos = 0
	e.ready = false
	e.ended = false
	e.drained = false
}

// pump decodes the source into ch until it is drained or cancelled
func (e *Element) pump(ctx context.Context, gen uint64, src string, start float64, ch chan []int32) {
	defer e.wg.Done()
	defer close(ch)

	stream, err := e.opener(ctx, src)
	if err != nil {
		e.fail(gen, fmt.Errorf("failed to open %s: %w", src, err))
		return
	}
	defer stream.Close()

	format := stream.Format()
	if format.Channels == 0 || format.SampleRate == 0 {
		e.fail(gen, fmt.Errorf("invalid stream format for %s", src))
		return
	}

	skip := int64(start*float64(format.SampleRate)) * int64(format.Channels)
	primed := false
	for {
		buf := make([]int32, chunkFrames*format.Channels)
		n, err := stream.Read(buf)

		data := buf[:n]
		if skip > 0 {
			drop := skip
			if drop > int64(len(data)) {
				drop = int64(len(data))
			}
			data = data[drop:]
			skip -= drop
		}

		// Keep whole frames only
		data = data[:len(data)-len(data)%format.Channels]

		done := errors.Is(err, io.EOF)
		if len(data) > 0 || (done && !primed) {
			if !primed {
				if !e.prime(gen, format, stream.Frames(), data) {
					return
				}
				log.Debugf("Buffered %s (%d Hz, %d ch)", src, format.SampleRate, format.Channels)
				primed = true
			} else {
				select {
				case ch <- data:
				case <-ctx.Done():
					return
				}
			}
		}

		if done {
			return
		}
		if err != nil {
			e.fail(gen, fmt.Errorf("failed to decode %s: %w", src, err))
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// prime installs the first chunk and announces readiness
func (e *Element) prime(gen uint64, format audio.Format, frames int64, first []int32) bool {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return false
	}
	e.format = format
	e.frames = frames
	e.chunk = first
	e.chunkPos = 0
	e.ready = true
	listeners := e.snapshot()
	e.mu.Unlock()

	notify(listeners, EventCanPlayThrough, nil)
	return true
}

// fail records a load error for the current session
func (e *Element) fail(gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.err = err
	e.ready = false
	e.playing = false
	e.chunks = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	listeners := e.snapshot()
	e.mu.Unlock()

	log.Warnf("Media error: %v", err)
	e.graph.Stop(e)
	notify(listeners, EventError, err)
}

func (e *Element) applyGain() {
	if e.muted {
		e.gain.SetValue(0)
		return
	}
	e.gain.SetValue(e.volume)
}

func (e *Element) snapshot() []Listener {
	listeners := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func notify(listeners []Listener, ev Event, err error) {
	for _, fn := range listeners {
		fn(ev, err)
	}
}
