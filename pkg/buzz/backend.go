// ABOUTME: Playback backends realising a sound: decoded buffers or pooled streaming nodes
// ABOUTME: The sound state machine only sees the backend interface
package buzz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/graph"
	"github.com/Resonate-Protocol/buzz-go/pkg/media"
)

// backend is implemented by bufferBackend and streamBackend only.
// All methods except load are called with the sound's lock held.
type backend interface {
	// load blocks until the resource is playable and returns its duration
	// in seconds, 0 when unknown
	load(ctx context.Context) (float64, error)
	playNode(offset, duration float64)
	stopNode()
	seek() float64
	setSeek(pos float64)
	setRate(rate float64)
	setVolume(v float64)
	mute(muted bool)
	destroy()
}

// bufferBackend plays a decoded buffer through one-shot graph sources
type bufferBackend struct {
	graph *graph.Context
	cache BufferCache
	url   string
	gain  *graph.Gain

	mu          sync.Mutex
	buf         *audio.Buffer
	src         *graph.BufferSource
	startTime   float64
	startOffset float64
	rate        float64
	volume      float64
	muted       bool
	destroyed   bool
}

func newBufferBackend(g *graph.Context, cache BufferCache, url string) *bufferBackend {
	gain := graph.NewGain(1)
	gain.Connect(g.Destination())

	return &bufferBackend{
		graph:  g,
		cache:  cache,
		url:    url,
		gain:   gain,
		rate:   1,
		volume: 1,
	}
}

func (b *bufferBackend) load(ctx context.Context) (float64, error) {
	res := b.cache.Load(ctx, []string{b.url}, true)[0]
	if res.Err != nil {
		return 0, res.Err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return 0, ErrDestroyed
	}
	b.buf = res.Buffer
	return b.buf.Duration(), nil
}

func (b *bufferBackend) playNode(offset, duration float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf == nil || b.destroyed {
		return
	}
	b.stopLocked()

	src := b.graph.NewBufferSource(b.buf)
	src.SetPlaybackRate(b.rate)
	src.Connect(b.gain)
	b.src = src
	b.startTime = b.graph.CurrentTime()
	b.startOffset = offset
	src.Start(offset, duration)
}

func (b *bufferBackend) stopNode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *bufferBackend) stopLocked() {
	if b.src == nil {
		return
	}
	b.startOffset = b.seekLocked()
	b.src.Stop()
	b.src.Disconnect()
	b.src = nil
}

func (b *bufferBackend) seek() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seekLocked()
}

// seekLocked derives the position from the graph clock
func (b *bufferBackend) seekLocked() float64 {
	if b.src == nil {
		return b.startOffset
	}
	return b.startOffset + (b.graph.CurrentTime()-b.startTime)*b.rate
}

func (b *bufferBackend) setSeek(pos float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startOffset = pos
	b.startTime = b.graph.CurrentTime()
}

func (b *bufferBackend) setRate(rate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Rebase so elapsed time before the change keeps the old rate
	b.startOffset = b.seekLocked()
	b.startTime = b.graph.CurrentTime()
	b.rate = rate
	if b.src != nil {
		b.src.SetPlaybackRate(rate)
	}
}

func (b *bufferBackend) setVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = v
	b.applyGain()
}

func (b *bufferBackend) mute(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = muted
	b.applyGain()
}

func (b *bufferBackend) applyGain() {
	if b.muted {
		b.gain.SetValue(0)
		return
	}
	b.gain.SetValue(b.volume)
}

func (b *bufferBackend) destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.destroyed = true
	b.stopLocked()
	b.gain.Disconnect()
	b.buf = nil
}

// streamBackend plays through a pooled streaming node bound to the sound
type streamBackend struct {
	loader  *StreamLoader
	url     string
	group   string
	soundID int
	onEnded func()

	mu          sync.Mutex
	handle      Handle
	bound       bool
	unsubscribe func()
	pos         float64
	rate        float64
	volume      float64
	muted       bool
	destroyed   bool
}

func newStreamBackend(loader *StreamLoader, url, group string, soundID int, onEnded func()) *streamBackend {
	return &streamBackend{
		loader:  loader,
		url:     url,
		group:   group,
		soundID: soundID,
		onEnded: onEnded,
		rate:    1,
		volume:  1,
	}
}

func (b *streamBackend) load(ctx context.Context) (float64, error) {
	h, err := b.loader.AllocateForSound(b.url, b.group, b.soundID)
	if errors.Is(err, ErrNoFreeNodes) {
		res := b.loader.LoadForSound(ctx, b.url, b.group, b.soundID)
		if res.Err != nil {
			b.loader.ReleaseForSound(b.url, b.group, b.soundID)
			return 0, res.Err
		}
		h, err = res.Handle, nil
	}
	if err != nil {
		return 0, err
	}

	if err := awaitReady(ctx, h.Node); err != nil {
		b.loader.ReleaseForSound(b.url, b.group, b.soundID)
		return 0, fmt.Errorf("%w: %s: %w", ErrLoadFailure, b.url, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		b.loader.ReleaseForSound(b.url, b.group, b.soundID)
		return 0, ErrDestroyed
	}

	b.handle = h
	b.bound = true
	b.unsubscribe = h.Node.Subscribe(func(ev media.Event, err error) {
		if ev == media.EventEnded && b.onEnded != nil {
			b.onEnded()
		}
	})
	h.Node.SetPlaybackRate(b.rate)
	h.Node.SetVolume(b.volume)
	h.Node.SetMuted(b.muted)

	return h.Node.Duration(), nil
}

func (b *streamBackend) playNode(offset, duration float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.bound {
		return
	}
	node := b.handle.Node
	node.SetCurrentTime(offset)
	node.SetPlaybackRate(b.rate)
	if err := node.Play(); err != nil {
		log.Warnf("Failed to play %s: %v", b.url, err)
	}
}

func (b *streamBackend) stopNode() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound {
		b.pos = b.handle.Node.CurrentTime()
		b.handle.Node.Pause()
	}
}

func (b *streamBackend) seek() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound {
		return b.handle.Node.CurrentTime()
	}
	return b.pos
}

func (b *streamBackend) setSeek(pos float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pos = pos
	if b.bound {
		b.handle.Node.SetCurrentTime(pos)
	}
}

func (b *streamBackend) setRate(rate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rate = rate
	if b.bound {
		b.handle.Node.SetPlaybackRate(rate)
	}
}

func (b *streamBackend) setVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.volume = v
	if b.bound {
		b.handle.Node.SetVolume(v)
	}
}

func (b *streamBackend) mute(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.muted = muted
	if b.bound {
		b.handle.Node.SetMuted(muted)
	}
}

func (b *streamBackend) destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.destroyed = true
	if !b.bound {
		return
	}
	b.unsubscribe()
	b.handle.Node.Pause()
	b.loader.ReleaseForSound(b.url, b.group, b.soundID)
	b.bound = false
}

// awaitReady blocks until node can play through
func awaitReady(ctx context.Context, node Node) error {
	if node.Ready() {
		return nil
	}

	ch := make(chan error, 1)
	unsubscribe := node.Subscribe(func(ev media.Event, err error) {
		var res error
		switch ev {
		case media.EventCanPlayThrough:
		case media.EventError:
			res = err
		default:
			return
		}
		select {
		case ch <- res:
		default:
		}
	})
	defer unsubscribe()

	if node.Ready() {
		return nil
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
