// ABOUTME: Engine owning the audio graph, both loaders, lifecycle and idle sweeping
// ABOUTME: Suspend, resume and terminate never overlap; late requests wait in the action queue
package buzz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/buzz-go/internal/events"
	"github.com/Resonate-Protocol/buzz-go/internal/fetch"
	"github.com/Resonate-Protocol/buzz-go/internal/queue"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/graph"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/output"
	"github.com/Resonate-Protocol/buzz-go/pkg/media"
	"github.com/jonboulle/clockwork"
)

// EngineState is the engine lifecycle state
type EngineState int

const (
	EngineNotReady EngineState = iota
	EngineReady
	EngineSuspending
	EngineSuspended
	EngineResuming
	EngineDestroying
	EngineDone
	EngineNoAudio
)

func (s EngineState) String() string {
	switch s {
	case EngineNotReady:
		return "not-ready"
	case EngineReady:
		return "ready"
	case EngineSuspending:
		return "suspending"
	case EngineSuspended:
		return "suspended"
	case EngineResuming:
		return "resuming"
	case EngineDestroying:
		return "destroying"
	case EngineDone:
		return "done"
	case EngineNoAudio:
		return "no-audio"
	default:
		return fmt.Sprintf("EngineState(%d)", int(s))
	}
}

const (
	// DefaultFreeInterval is how often idle sounds are swept
	DefaultFreeInterval = 5 * time.Minute

	// DefaultIdleThreshold is how long a sound may sit idle before it is freed
	DefaultIdleThreshold = 2 * time.Minute

	engineScope = "engine"

	phaseReady     = "ready"
	phaseSuspended = "suspended"
)

// Config holds engine configuration
type Config struct {
	// Device receives the mixed output. When nil one is created from Backend.
	Device output.Device

	// Backend names the output backend (default: oto)
	Backend string

	// SampleRate of the graph (default: 48000)
	SampleRate int

	// Channels of the graph (default: 2)
	Channels int

	// MaxStreamNodes per resource (default: 10)
	MaxStreamNodes int

	// FreeInterval between idle sweeps (default: 5m)
	FreeInterval time.Duration

	// IdleThreshold after which a stopped sound is freed (default: 2m)
	IdleThreshold time.Duration

	// AutoEnable keeps the graph suspended until the first play
	AutoEnable bool

	// Volume of the master gain, 0 to 1. DefaultConfig sets 1; a zero
	// Volume starts the engine silent.
	Volume float64
	Muted  bool

	// Clock drives timers and the graph (default: real clock)
	Clock clockwork.Clock

	// CacheDir keeps downloaded resources on disk when set
	CacheDir string

	// Fetcher overrides the resource fetcher built from CacheDir
	Fetcher *fetch.Fetcher

	// BufferCache overrides the decoded buffer loader
	BufferCache BufferCache

	// NodeFactory overrides the streaming node constructor
	NodeFactory NodeFactory

	OnSuspend Callback
	OnResume  Callback
	OnDone    Callback
}

// DefaultConfig returns the configuration used for interactive playback
func DefaultConfig() Config {
	return Config{
		MaxStreamNodes: DefaultMaxStreamNodes,
		FreeInterval:   DefaultFreeInterval,
		IdleThreshold:  DefaultIdleThreshold,
		AutoEnable:     true,
		Volume:         1,
	}
}

// Engine is the root of a playback session
type Engine struct {
	cfg     Config
	clock   clockwork.Clock
	graph   *graph.Context
	fetcher *fetch.Fetcher
	loader  *StreamLoader
	buffers BufferCache
	emitter *events.Emitter[Event]
	actions *queue.Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	quit   chan struct{}

	nextSoundID atomic.Int64

	mu      sync.Mutex
	state   EngineState
	volume  float64
	muted   bool
	buzzes  map[string]*Buzz
	order   []string
	stopped bool
}

// New creates an engine. A missing or failing output device does not fail
// construction; the engine comes up in EngineNoAudio instead.
func New(cfg Config) (*Engine, error) {
	if cfg.MaxStreamNodes <= 0 {
		cfg.MaxStreamNodes = DefaultMaxStreamNodes
	}
	if cfg.FreeInterval <= 0 {
		cfg.FreeInterval = DefaultFreeInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if !validVolume(cfg.Volume) {
		return nil, fmt.Errorf("%w: volume %v", ErrInvalidArgument, cfg.Volume)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	g, err := graph.NewContext(graph.Config{
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		Clock:          cfg.Clock,
		StartSuspended: cfg.AutoEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audio graph: %w", err)
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher, err = fetch.New(fetch.Config{CacheDir: cfg.CacheDir})
		if err != nil {
			return nil, err
		}
	}

	buffers := cfg.BufferCache
	if buffers == nil {
		buffers = NewBufferLoader(fetcher, g.SampleRate())
	}

	factory := cfg.NodeFactory
	if factory == nil {
		opener := media.FetchOpener(fetcher)
		factory = func(string) Node { return media.New(g, opener) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     cfg,
		clock:   cfg.Clock,
		graph:   g,
		fetcher: fetcher,
		loader:  NewStreamLoader(NewPool(cfg.MaxStreamNodes, factory)),
		buffers: buffers,
		emitter: events.New[Event](),
		actions: queue.New(),
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
		volume:  cfg.Volume,
		muted:   cfg.Muted,
		buzzes:  make(map[string]*Buzz),
	}
	e.applyMaster()

	for t, fn := range map[EventType]Callback{
		EventSuspend: cfg.OnSuspend,
		EventResume:  cfg.OnResume,
		EventDone:    cfg.OnDone,
	} {
		if fn != nil {
			e.On(t, fn)
		}
	}

	if err := e.attach(); err != nil {
		log.Warnf("No audio output available: %v", err)
		e.state = EngineNoAudio
		return e, nil
	}

	e.state = EngineReady
	if cfg.AutoEnable {
		e.state = EngineNotReady
	}

	e.wg.Add(1)
	go e.sweep()

	log.Infof("Engine started: %d Hz, %d channels, %d stream nodes per resource",
		g.SampleRate(), g.Format().Channels, cfg.MaxStreamNodes)
	return e, nil
}

func (e *Engine) attach() error {
	device := e.cfg.Device
	if device == nil {
		var err error
		device, err = output.New(e.cfg.Backend)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoAudioCapability, err)
		}
	}
	if err := e.graph.Attach(device); err != nil {
		return fmt.Errorf("%w: %w", ErrNoAudioCapability, err)
	}
	return nil
}

// State returns the lifecycle state
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Graph returns the audio graph
func (e *Engine) Graph() *graph.Context { return e.graph }

// Loader returns the streaming loader
func (e *Engine) Loader() *StreamLoader { return e.loader }

// Pool returns the streaming node pool
func (e *Engine) Pool() *Pool { return e.loader.Pool() }

// Buffers returns the decoded buffer cache
func (e *Engine) Buffers() BufferCache { return e.buffers }

// Clock returns the engine clock
func (e *Engine) Clock() clockwork.Clock { return e.clock }

// NewBuzz creates a group of sounds for one resource
func (e *Engine) NewBuzz(opts Options) (*Buzz, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	switch e.state {
	case EngineNoAudio:
		e.mu.Unlock()
		return nil, ErrNoAudioCapability
	case EngineDestroying, EngineDone:
		e.mu.Unlock()
		return nil, ErrDestroyed
	}
	b := newBuzz(e, opts)
	e.buzzes[b.id] = b
	e.order = append(e.order, b.id)
	e.mu.Unlock()

	for t, fn := range opts.callbacks() {
		if fn != nil {
			b.On(t, fn)
		}
	}

	log.Debugf("Created group %s for %s (stream=%v)", b.id, b.url, b.stream)

	if opts.Preload {
		e.spawn(func() { b.Load(e.ctx) })
	}
	if opts.Autoplay {
		if _, err := b.Play(); err != nil {
			log.Warnf("Autoplay of %s failed: %v", b.url, err)
		}
	}
	return b, nil
}

// Buzzes returns the live groups in creation order
func (e *Engine) Buzzes() []*Buzz {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buzzesLocked()
}

func (e *Engine) buzzesLocked() []*Buzz {
	buzzes := make([]*Buzz, 0, len(e.order))
	for _, id := range e.order {
		buzzes = append(buzzes, e.buzzes[id])
	}
	return buzzes
}

// Volume returns the master volume
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume sets the master volume; values outside [0, 1] are ignored
func (e *Engine) SetVolume(v float64) {
	if !validVolume(v) {
		return
	}

	e.mu.Lock()
	e.volume = v
	e.applyMaster()
	e.mu.Unlock()

	e.fire(Event{Type: EventVolume})
}

// Muted reports whether the master output is muted
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Mute forces the master gain to 0; unmuting restores the volume
func (e *Engine) Mute(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.applyMaster()
	e.mu.Unlock()

	e.fire(Event{Type: EventMute})
}

func (e *Engine) applyMaster() {
	if e.muted {
		e.graph.Destination().SetValue(0)
		return
	}
	e.graph.Destination().SetValue(e.volume)
}

// Suspend stops every sound and suspends the output. A request made while
// a resume is in flight runs once it completes.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	switch e.state {
	case EngineResuming:
		e.actions.Add(phaseReady, "suspend", func() { e.Suspend() })
		e.mu.Unlock()
		return nil
	case EngineReady, EngineNotReady:
	default:
		e.mu.Unlock()
		return nil
	}
	e.state = EngineSuspending
	buzzes := e.buzzesLocked()
	e.mu.Unlock()

	for _, b := range buzzes {
		b.Stop()
	}

	err := e.graph.Suspend()
	if err != nil {
		log.Errorf("Suspend failed: %v", err)
	}

	e.mu.Lock()
	e.state = EngineSuspended
	e.mu.Unlock()

	log.Info("Engine suspended")
	e.fire(Event{Type: EventSuspend, Err: err})
	e.actions.Run(phaseSuspended)
	return err
}

// Resume restarts the output. A request made while a suspend is in flight
// runs once it completes.
func (e *Engine) Resume() error {
	e.mu.Lock()
	switch e.state {
	case EngineSuspending:
		e.actions.Add(phaseSuspended, "resume", func() { e.Resume() })
		e.mu.Unlock()
		return nil
	case EngineSuspended, EngineNotReady:
	default:
		e.mu.Unlock()
		return nil
	}
	e.state = EngineResuming
	e.mu.Unlock()

	err := e.graph.Resume()
	if err != nil {
		log.Errorf("Resume failed: %v", err)
	}

	e.mu.Lock()
	e.state = EngineReady
	e.mu.Unlock()

	log.Info("Engine resumed")
	e.fire(Event{Type: EventResume, Err: err})
	e.actions.Run(phaseReady)
	return err
}

// enable resumes a graph held back by AutoEnable on the first play
func (e *Engine) enable() {
	if e.State() == EngineNotReady {
		e.Resume()
	}
}

// Terminate destroys every group, disposes both loaders and closes the
// output. When a suspend or resume is in flight it runs after it completes.
// It must not be called from an event callback.
func (e *Engine) Terminate() error {
	e.mu.Lock()
	switch e.state {
	case EngineDestroying, EngineDone:
		e.mu.Unlock()
		return nil
	case EngineSuspending:
		e.actions.Add(phaseSuspended, "terminate", func() { e.Terminate() })
		e.mu.Unlock()
		return nil
	case EngineResuming:
		e.actions.Add(phaseReady, "terminate", func() { e.Terminate() })
		e.mu.Unlock()
		return nil
	}
	e.state = EngineDestroying
	buzzes := e.buzzesLocked()
	e.stopSweep()
	e.mu.Unlock()

	for _, b := range buzzes {
		b.Destroy()
	}
	e.loader.Dispose()
	e.buffers.Unload()

	e.cancel()
	e.wg.Wait()
	e.actions.Clear()

	err := e.graph.Close()
	if err != nil {
		log.Errorf("Failed to close output: %v", err)
	}

	e.mu.Lock()
	e.state = EngineDone
	e.mu.Unlock()

	log.Info("Engine terminated")
	e.fire(Event{Type: EventDone})
	e.emitter.Clear(engineScope)
	return err
}

// Free destroys sounds idle for longer than the idle threshold and returns
// unused stream nodes to the pool
func (e *Engine) Free() int {
	e.mu.Lock()
	switch e.state {
	case EngineDestroying, EngineDone, EngineNoAudio:
		e.mu.Unlock()
		return 0
	}
	buzzes := e.buzzesLocked()
	e.mu.Unlock()

	now := e.clock.Now()
	freed := 0
	for _, b := range buzzes {
		freed += b.free(now, e.cfg.IdleThreshold)
	}
	e.loader.CleanUp()

	if freed > 0 {
		log.Debugf("Freed %d idle sounds", freed)
	}
	return freed
}

func (e *Engine) sweep() {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(e.cfg.FreeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			e.Free()
		case <-e.quit:
			return
		}
	}
}

// stopSweep ends the sweep goroutine. Caller holds e.mu.
func (e *Engine) stopSweep() {
	if !e.stopped {
		e.stopped = true
		close(e.quit)
	}
}

// On registers fn for engine events of type t
func (e *Engine) On(t EventType, fn Callback) uint64 {
	return e.emitter.On(engineScope, string(t), events.Handler[Event](fn))
}

// Once registers fn for the next engine event of type t
func (e *Engine) Once(t EventType, fn Callback) uint64 {
	return e.emitter.Once(engineScope, string(t), events.Handler[Event](fn))
}

// Off removes the handler with id, or all handlers for t when id is 0
func (e *Engine) Off(t EventType, id uint64) {
	e.emitter.Off(engineScope, string(t), id)
}

// spawn runs fn on a tracked goroutine unless the engine is shutting down
func (e *Engine) spawn(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case EngineDestroying, EngineDone:
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

func (e *Engine) untrack(b *Buzz) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.buzzes, b.id)
	for i, id := range e.order {
		if id == b.id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// urlInUse reports whether a tracked buffer group still plays url
func (e *Engine) urlInUse(url string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, b := range e.buzzes {
		if !b.stream && b.url == url {
			return true
		}
	}
	return false
}

func (e *Engine) fire(ev Event) {
	e.emitter.Fire(engineScope, string(ev.Type), ev)
}
