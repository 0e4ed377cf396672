// ABOUTME: Buzz groups: a family of sounds sharing one resource and its options
// ABOUTME: Groups hand out sounds, fan out bulk operations and own pooled stream nodes
package buzz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/buzz-go/internal/events"
	"github.com/google/uuid"
)

// Buzz is a group of sounds playing the same resource. Overlapping plays
// get their own sounds; a stream group claims one pooled node per sound.
type Buzz struct {
	id      string
	engine  *Engine
	url     string
	stream  bool
	regions map[string]Region

	mu        sync.Mutex
	opts      Options
	sounds    map[int]*Sound
	order     []int
	destroyed bool
}

func newBuzz(e *Engine, opts Options) *Buzz {
	regions := make(map[string]Region, len(opts.Regions))
	for name, r := range opts.Regions {
		regions[name] = r
	}

	return &Buzz{
		id:      uuid.NewString(),
		engine:  e,
		url:     opts.source(),
		stream:  opts.Stream,
		regions: regions,
		opts:    opts,
		sounds:  make(map[int]*Sound),
	}
}

// ID returns the group id
func (b *Buzz) ID() string { return b.id }

// URL returns the resource the group plays
func (b *Buzz) URL() string { return b.url }

// Stream reports whether the group plays through streaming nodes
func (b *Buzz) Stream() bool { return b.stream }

// Load fetches the resource ahead of the first play. For a stream group
// one node is readied and reserved for the group.
func (b *Buzz) Load(ctx context.Context) error {
	if b.isDestroyed() {
		return ErrDestroyed
	}

	var err error
	if b.stream {
		err = b.engine.loader.Load(ctx, b.url, b.id).Err
	} else {
		err = b.engine.buffers.Load(ctx, []string{b.url}, true)[0].Err
	}

	if err != nil {
		log.Warnf("Failed to load %s: %v", b.url, err)
		b.fire(Event{Type: EventError, URL: b.url, Err: err})
		return err
	}

	log.Debugf("Loaded %s for group %s", b.url, b.id)
	b.fire(Event{Type: EventLoad, URL: b.url})
	return nil
}

// NewSound creates a sound without playing it
func (b *Buzz) NewSound() (*Sound, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	return b.newSoundLocked(), nil
}

func (b *Buzz) newSoundLocked() *Sound {
	id := int(b.engine.nextSoundID.Add(1))
	s := newSound(b, id, b.opts)
	b.sounds[id] = s
	b.order = append(b.order, id)
	return s
}

// Play plays the whole resource on an idle loaded sound, or a new one
func (b *Buzz) Play() (*Sound, error) {
	return b.play("")
}

// PlayRegion plays the named region on an idle loaded sound, or a new one
func (b *Buzz) PlayRegion(name string) (*Sound, error) {
	if _, ok := b.regions[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	return b.play(name)
}

func (b *Buzz) play(region string) (*Sound, error) {
	s, err := b.acquire()
	if err != nil {
		return nil, err
	}

	err = s.play(region)
	if errors.Is(err, ErrDestroyed) && !b.isDestroyed() {
		// The sweep freed the reused sound first; it is gone from the group now
		if s, err = b.acquire(); err != nil {
			return nil, err
		}
		err = s.play(region)
	}
	return s, err
}

// acquire returns the first reusable sound or creates one
func (b *Buzz) acquire() (*Sound, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	for _, id := range b.order {
		if s := b.sounds[id]; s.reusable() {
			return s, nil
		}
	}
	return b.newSoundLocked(), nil
}

// Sound returns the sound with id, or nil
func (b *Buzz) Sound(id int) *Sound {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sounds[id]
}

// Sounds returns the live sounds in creation order
func (b *Buzz) Sounds() []*Sound {
	b.mu.Lock()
	defer b.mu.Unlock()

	sounds := make([]*Sound, 0, len(b.order))
	for _, id := range b.order {
		sounds = append(sounds, b.sounds[id])
	}
	return sounds
}

// Pause pauses every sound
func (b *Buzz) Pause() {
	for _, s := range b.Sounds() {
		s.Pause()
	}
}

// Stop stops every sound
func (b *Buzz) Stop() {
	for _, s := range b.Sounds() {
		s.Stop()
	}
}

// SetVolume sets the volume of every sound and of sounds created later
func (b *Buzz) SetVolume(v float64) {
	if !validVolume(v) {
		return
	}

	b.mu.Lock()
	b.opts.Volume = Float64(v)
	b.mu.Unlock()

	for _, s := range b.Sounds() {
		s.SetVolume(v)
	}
}

// Mute mutes or unmutes every sound and sounds created later
func (b *Buzz) Mute(muted bool) {
	b.mu.Lock()
	b.opts.Muted = muted
	b.mu.Unlock()

	for _, s := range b.Sounds() {
		s.Mute(muted)
	}
}

// SetRate sets the rate of every sound and of sounds created later
func (b *Buzz) SetRate(rate float64) {
	if !validRate(rate) {
		return
	}

	b.mu.Lock()
	b.opts.Rate = rate
	b.mu.Unlock()

	for _, s := range b.Sounds() {
		s.SetRate(rate)
	}
}

// SetLoop sets looping on every sound and on sounds created later
func (b *Buzz) SetLoop(loop bool) {
	b.mu.Lock()
	b.opts.Loop = loop
	b.mu.Unlock()

	for _, s := range b.Sounds() {
		s.SetLoop(loop)
	}
}

// On registers fn for events of type t from this group
func (b *Buzz) On(t EventType, fn Callback) uint64 {
	return b.engine.emitter.On(b.id, string(t), events.Handler[Event](fn))
}

// Once registers fn for the next event of type t
func (b *Buzz) Once(t EventType, fn Callback) uint64 {
	return b.engine.emitter.Once(b.id, string(t), events.Handler[Event](fn))
}

// Off removes the handler with id, or all handlers for t when id is 0
func (b *Buzz) Off(t EventType, id uint64) {
	b.engine.emitter.Off(b.id, string(t), id)
}

// Destroy destroys every sound and releases the group's resources
func (b *Buzz) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()

	for _, s := range b.Sounds() {
		s.Destroy()
	}

	e := b.engine
	e.untrack(b)
	if b.stream {
		e.loader.ReleaseForGroup(b.url, b.id, false)
	} else if !e.urlInUse(b.url) {
		e.buffers.Unload(b.url)
	}

	b.fire(Event{Type: EventDestroy, URL: b.url})
	e.emitter.Clear(b.id)
}

// free destroys sounds idle for longer than threshold and returns unbound
// stream nodes to the pool
func (b *Buzz) free(now time.Time, threshold time.Duration) int {
	freed := 0
	for _, s := range b.Sounds() {
		if s.destroyIfIdle(now, threshold) {
			freed++
		}
	}

	if b.stream {
		b.engine.loader.ReleaseForGroup(b.url, b.id, true)
	}
	return freed
}

func (b *Buzz) removeSound(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sounds[id]; !ok {
		return
	}
	delete(b.sounds, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Buzz) isDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

func (b *Buzz) fire(ev Event) {
	b.engine.emitter.Fire(b.id, string(ev.Type), ev)
}
