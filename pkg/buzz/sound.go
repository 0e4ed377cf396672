// ABOUTME: Sound playback state machine shared by both backends
// ABOUTME: Drives play, pause, stop, seek and rate with an end-of-region timer
package buzz

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the playback state of a sound
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdStop
	cmdSeek
)

// command is an operation waiting for the resource to load
type command struct {
	kind   commandKind
	region string
	pos    float64
}

// Sound is one playable instance with its own state and settings
type Sound struct {
	id      int
	buzz    *Buzz
	url     string
	clock   clockwork.Clock
	backend backend

	mu         sync.Mutex
	state      State
	loaded     bool
	loading    bool
	cancelLoad context.CancelFunc
	duration   float64
	regionName string
	seek       float64
	rate       float64
	volume     float64
	muted      bool
	loop       bool
	timer      clockwork.Timer
	timerGen   uint64
	pending    []command
	lastActive time.Time
}

func newSound(b *Buzz, id int, opts Options) *Sound {
	s := &Sound{
		id:         id,
		buzz:       b,
		url:        b.url,
		clock:      b.engine.clock,
		rate:       opts.Rate,
		volume:     *opts.Volume,
		muted:      opts.Muted,
		loop:       opts.Loop,
		lastActive: b.engine.clock.Now(),
	}

	if opts.Stream {
		s.backend = newStreamBackend(b.engine.loader, b.url, b.id, id, s.nodeEnded)
	} else {
		s.backend = newBufferBackend(b.engine.graph, b.engine.buffers, b.url)
	}
	return s
}

// ID returns the sound id, unique within the engine
func (s *Sound) ID() int { return s.id }

// Buzz returns the group the sound belongs to
func (s *Sound) Buzz() *Buzz { return s.buzz }

// State returns the playback state
func (s *Sound) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loaded reports whether the resource is ready
func (s *Sound) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Duration returns the resource length in seconds, 0 until loaded or when unknown
func (s *Sound) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Position returns the playback position in seconds
func (s *Sound) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePlaying {
		return s.backend.seek()
	}
	return s.seek
}

// Rate returns the playback rate
func (s *Sound) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Volume returns the sound volume
func (s *Sound) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Muted reports whether the sound is muted
func (s *Sound) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Loop reports whether the sound loops
func (s *Sound) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Region returns the name of the region being played, empty for the whole resource
func (s *Sound) Region() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regionName
}

// Play starts or resumes playback. Playing sounds are left alone.
func (s *Sound) Play() error {
	return s.play("")
}

// PlayRegion plays the named region from its start unless the sound is
// already positioned inside it
func (s *Sound) PlayRegion(name string) error {
	if _, ok := s.buzz.regions[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	return s.play(name)
}

func (s *Sound) play(region string) error {
	s.buzz.engine.enable()

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	s.lastActive = s.clock.Now()

	if !s.loaded {
		s.enqueue(command{kind: cmdPlay, region: region})
		s.startLoad()
		s.mu.Unlock()
		return nil
	}

	events := s.playLocked(region, true)
	s.mu.Unlock()

	s.fire(events)
	return nil
}

func (s *Sound) playLocked(region string, announce bool) []Event {
	if s.state == StatePlaying {
		return nil
	}
	if region != "" && region != s.regionName {
		s.regionName = region
		s.seek = s.buzz.regions[region].Start
	}

	start, end := s.bounds()
	if end <= start {
		return nil
	}

	offset := s.seek
	if offset < start || offset >= end {
		offset = start
	}
	s.seek = offset

	s.backend.playNode(offset, end-offset)
	s.state = StatePlaying
	s.armTimer(end - offset)

	if !announce {
		return nil
	}
	return []Event{s.event(EventPlay)}
}

// Pause halts playback and keeps the position
func (s *Sound) Pause() error {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	s.lastActive = s.clock.Now()

	if s.loading {
		s.enqueue(command{kind: cmdPause})
		s.mu.Unlock()
		return nil
	}

	events := s.pauseLocked(true)
	s.mu.Unlock()

	s.fire(events)
	return nil
}

func (s *Sound) pauseLocked(announce bool) []Event {
	if s.state != StatePlaying {
		return nil
	}

	s.seek = s.backend.seek()
	s.backend.stopNode()
	s.clearTimer()
	s.state = StatePaused

	if !announce {
		return nil
	}
	return []Event{s.event(EventPause)}
}

// Stop halts playback and rewinds to the start of the region
func (s *Sound) Stop() error {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	s.lastActive = s.clock.Now()

	if s.loading {
		s.enqueue(command{kind: cmdStop})
		s.mu.Unlock()
		return nil
	}

	events := s.stopLocked()
	s.mu.Unlock()

	s.fire(events)
	return nil
}

func (s *Sound) stopLocked() []Event {
	if !s.loaded {
		return nil
	}

	start, _ := s.bounds()
	s.backend.stopNode()
	s.backend.setSeek(start)
	s.seek = start
	s.clearTimer()
	s.state = StateIdle

	return []Event{s.event(EventStop)}
}

// Seek moves to pos seconds. Positions outside the resource are ignored.
func (s *Sound) Seek(pos float64) error {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	s.lastActive = s.clock.Now()

	if !s.loaded {
		s.enqueue(command{kind: cmdSeek, pos: pos})
		s.startLoad()
		s.mu.Unlock()
		return nil
	}

	events := s.seekLocked(pos)
	s.mu.Unlock()

	s.fire(events)
	return nil
}

func (s *Sound) seekLocked(pos float64) []Event {
	if pos < 0 || math.IsNaN(pos) || (s.duration > 0 && pos > s.duration) {
		return nil
	}

	if s.state == StatePlaying {
		s.pauseLocked(false)
		s.seek = pos
		s.backend.setSeek(pos)
		s.playLocked("", false)
	} else {
		s.seek = pos
		s.backend.setSeek(pos)
	}

	return []Event{s.event(EventSeek)}
}

// SetRate changes the playback rate; rates outside (0, MaxRate] are ignored
func (s *Sound) SetRate(rate float64) error {
	if !validRate(rate) {
		return nil
	}

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}

	s.rate = rate
	if s.loaded {
		if s.state == StatePlaying {
			pos := s.backend.seek()
			s.backend.setRate(rate)
			_, end := s.bounds()
			s.armTimer(end - pos)
		} else {
			s.backend.setRate(rate)
		}
	}
	events := []Event{s.event(EventRate)}
	s.mu.Unlock()

	s.fire(events)
	return nil
}

// SetVolume sets the sound volume; values outside [0, 1] are ignored
func (s *Sound) SetVolume(v float64) error {
	if !validVolume(v) {
		return nil
	}

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}

	s.volume = v
	if s.loaded {
		s.backend.setVolume(v)
	}
	events := []Event{s.event(EventVolume)}
	s.mu.Unlock()

	s.fire(events)
	return nil
}

// Mute silences the sound without touching its volume
func (s *Sound) Mute(muted bool) error {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}

	s.muted = muted
	if s.loaded {
		s.backend.mute(muted)
	}
	events := []Event{s.event(EventMute)}
	s.mu.Unlock()

	s.fire(events)
	return nil
}

// SetLoop turns looping on or off
func (s *Sound) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

// Destroy stops the sound and releases its backend resources
func (s *Sound) Destroy() {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}
	events := s.destroyLocked()
	s.mu.Unlock()

	s.buzz.removeSound(s.id)
	s.fire(events)
}

// destroyIfIdle destroys the sound when it has been inactive for longer
// than threshold. The check and the teardown happen under one lock so a
// concurrent Play either wins or finds the sound destroyed.
func (s *Sound) destroyIfIdle(now time.Time, threshold time.Duration) bool {
	s.mu.Lock()
	if !s.idleLocked(now, threshold) {
		s.mu.Unlock()
		return false
	}
	events := s.destroyLocked()
	s.mu.Unlock()

	s.buzz.removeSound(s.id)
	s.fire(events)
	return true
}

// destroyLocked tears the sound down. Caller holds s.mu.
func (s *Sound) destroyLocked() []Event {
	s.clearTimer()
	s.pending = nil
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.state = StateDestroyed
	s.backend.destroy()
	return []Event{s.event(EventDestroy)}
}

// idleLocked reports whether the sound has been inactive for longer than
// threshold. Caller holds s.mu.
func (s *Sound) idleLocked(now time.Time, threshold time.Duration) bool {
	switch s.state {
	case StatePlaying, StateLoading, StateDestroyed:
		return false
	}
	return now.Sub(s.lastActive) > threshold
}

// reusable reports whether a group may hand this sound out for a new play
func (s *Sound) reusable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && s.state == StateIdle
}

// enqueue stores cmd, replacing a queued command of the same kind in place.
// Caller holds s.mu.
func (s *Sound) enqueue(cmd command) {
	for i := range s.pending {
		if s.pending[i].kind == cmd.kind {
			s.pending[i] = cmd
			return
		}
	}
	s.pending = append(s.pending, cmd)
}

// startLoad begins loading in the background. Caller holds s.mu.
func (s *Sound) startLoad() {
	if s.loading || s.loaded {
		return
	}

	ctx, cancel := context.WithCancel(s.buzz.engine.ctx)
	if !s.buzz.engine.spawn(func() { s.load(ctx) }) {
		cancel()
		return
	}
	s.loading = true
	s.cancelLoad = cancel
	s.state = StateLoading
}

func (s *Sound) load(ctx context.Context) {
	duration, err := s.backend.load(ctx)

	s.mu.Lock()
	s.loading = false
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.pending = nil
		s.state = StateIdle
		ev := s.event(EventError)
		ev.Err = err
		s.mu.Unlock()

		log.Warnf("Sound %d failed to load %s: %v", s.id, s.url, err)
		s.fire([]Event{ev})
		return
	}

	s.loaded = true
	s.duration = duration
	s.state = StateIdle
	s.backend.setRate(s.rate)
	s.backend.setVolume(s.volume)
	s.backend.mute(s.muted)

	events := []Event{s.event(EventLoad)}
	pending := s.pending
	s.pending = nil
	for _, cmd := range pending {
		events = append(events, s.apply(cmd)...)
	}
	s.mu.Unlock()

	s.fire(events)
}

// apply runs a queued command. Caller holds s.mu.
func (s *Sound) apply(cmd command) []Event {
	switch cmd.kind {
	case cmdPlay:
		return s.playLocked(cmd.region, true)
	case cmdPause:
		return s.pauseLocked(true)
	case cmdStop:
		return s.stopLocked()
	case cmdSeek:
		return s.seekLocked(cmd.pos)
	default:
		return nil
	}
}

// bounds returns the current region in seconds. The end is +Inf when the
// resource length is unknown. Caller holds s.mu.
func (s *Sound) bounds() (float64, float64) {
	var region Region
	if s.regionName != "" {
		region = s.buzz.regions[s.regionName]
	}

	end := region.End
	if s.duration > 0 && (end <= 0 || end > s.duration) {
		end = s.duration
	}
	if end <= 0 {
		end = math.Inf(1)
	}
	return region.Start, end
}

// armTimer schedules the end of the region after remaining seconds of
// resource time at the current rate. Caller holds s.mu.
func (s *Sound) armTimer(remaining float64) {
	s.clearTimer()
	if math.IsInf(remaining, 0) || remaining <= 0 {
		return
	}

	wait := time.Duration(remaining / s.rate * float64(time.Second))
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(wait, func() { s.onEnded(gen) })
}

// clearTimer stops the end timer and invalidates any callback already
// waiting for the lock. Caller holds s.mu.
func (s *Sound) clearTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// onEnded handles the end of the region
func (s *Sound) onEnded(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.lastActive = s.clock.Now()

	start, end := s.bounds()
	var events []Event
	if s.loop {
		events = append(events, s.event(EventPlayEnd))
		s.backend.stopNode()
		s.seek = start
		s.backend.playNode(start, end-start)
		s.armTimer(end - start)
		events = append(events, s.event(EventPlayStart))
	} else {
		s.backend.stopNode()
		s.backend.setSeek(start)
		s.seek = start
		s.timerGen++
		s.state = StateIdle
		events = append(events, s.event(EventPlayEnd))
	}
	s.mu.Unlock()

	s.fire(events)
}

// nodeEnded handles a streaming node reaching the end of its source. The
// end timer takes precedence when the duration is known.
func (s *Sound) nodeEnded() {
	s.mu.Lock()
	if s.timer != nil || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	gen := s.timerGen
	s.mu.Unlock()

	s.onEnded(gen)
}

func (s *Sound) event(t EventType) Event {
	return Event{Type: t, SoundID: s.id, URL: s.url}
}

func (s *Sound) fire(events []Event) {
	for _, ev := range events {
		s.buzz.fire(ev)
	}
}
