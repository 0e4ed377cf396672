// ABOUTME: Tests for the engine lifecycle, master gain and idle sweeping
// ABOUTME: Uses a null output device, a fake clock and in-memory loaders
package buzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/graph"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/output"
)

const waitFor = 2 * time.Second

// fakeBuffers serves silent buffers of a fixed duration
type fakeBuffers struct {
	mu       sync.Mutex
	duration float64
	err      error
	gate     chan struct{}
	loads    int
	unloaded [][]string
}

func (f *fakeBuffers) Load(ctx context.Context, urls []string, useCache bool) []DownloadResult {
	f.mu.Lock()
	gate, err, duration := f.gate, f.err, f.duration
	f.loads++
	f.mu.Unlock()

	results := make([]DownloadResult, len(urls))
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			for i, url := range urls {
				results[i] = DownloadResult{URL: url, Err: ctx.Err()}
			}
			return results
		}
	}

	for i, url := range urls {
		if err != nil {
			results[i] = DownloadResult{URL: url, Err: fmt.Errorf("%w: %s: %w", ErrLoadFailure, url, err)}
			continue
		}
		results[i] = DownloadResult{URL: url, Buffer: &audio.Buffer{
			Samples: make([]int32, int(duration*1000)),
			Format:  audio.Format{SampleRate: 1000, Channels: 1},
		}}
	}
	return results
}

func (f *fakeBuffers) Unload(urls ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloaded = append(f.unloaded, urls)
}

func (f *fakeBuffers) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeBuffers) unloads() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.unloaded...)
}

// gatedDevice blocks Suspend and Resume until gate is closed. A nil gate
// passes straight through.
type gatedDevice struct {
	output.Device
	gate chan struct{}
}

func (d *gatedDevice) Suspend() error {
	if d.gate != nil {
		<-d.gate
	}
	return d.Device.Suspend()
}

func (d *gatedDevice) Resume() error {
	if d.gate != nil {
		<-d.gate
	}
	return d.Device.Resume()
}

// brokenDevice cannot be opened
type brokenDevice struct{ output.Device }

func (brokenDevice) Open(audio.Format, io.Reader) error {
	return errors.New("no such device")
}

// eventLog records events in arrival order
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) types() []EventType {
	var types []EventType
	for _, ev := range l.all() {
		types = append(types, ev.Type)
	}
	return types
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

var soundEvents = []EventType{
	EventLoad, EventError, EventPlay, EventPlayStart, EventPlayEnd, EventStop,
	EventPause, EventMute, EventVolume, EventRate, EventSeek, EventDestroy,
}

func watchBuzz(b *Buzz) *eventLog {
	l := &eventLog{}
	for _, t := range soundEvents {
		b.On(t, l.record)
	}
	return l
}

func watchEngine(e *Engine) *eventLog {
	l := &eventLog{}
	for _, t := range []EventType{EventSuspend, EventResume, EventDone, EventVolume, EventMute} {
		e.On(t, l.record)
	}
	return l
}

type testEngine struct {
	*Engine
	clock   clockwork.FakeClock
	device  *output.Null
	buffers *fakeBuffers
	nodes   *nodeRecorder
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	te := &testEngine{
		clock:   clockwork.NewFakeClock(),
		device:  output.NewNull().(*output.Null),
		buffers: &fakeBuffers{duration: 4},
		nodes:   &nodeRecorder{onLoad: readyOnLoad},
	}

	cfg := DefaultConfig()
	cfg.AutoEnable = false
	cfg.Device = te.device
	cfg.Clock = te.clock
	cfg.BufferCache = te.buffers
	cfg.NodeFactory = te.nodes.factory
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New(cfg)
	require.NoError(t, err)
	te.Engine = e
	t.Cleanup(func() { e.Terminate() })
	return te
}

func (te *testEngine) buzz(t *testing.T, opts Options) *Buzz {
	t.Helper()
	if len(opts.Sources) == 0 {
		opts.Sources = []string{"sfx/laser.wav"}
	}
	b, err := te.NewBuzz(opts)
	require.NoError(t, err)
	return b
}

func waitState(t *testing.T, s *Sound, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, waitFor, time.Millisecond,
		"sound %d never reached %s", s.ID(), want)
}

func TestNewDefaults(t *testing.T) {
	te := newTestEngine(t, nil)

	assert.Equal(t, EngineReady, te.State())
	assert.Equal(t, 1.0, te.Volume())
	assert.False(t, te.Muted())
	assert.Equal(t, DefaultMaxStreamNodes, te.Pool().Max())
	assert.Equal(t, graph.StateRunning, te.Graph().State())
}

func TestNewRejectsBadVolume(t *testing.T) {
	_, err := New(Config{Volume: 3, Device: output.NewNull()})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNoAudioCapability(t *testing.T) {
	defer goleak.VerifyNone(t)

	e, err := New(Config{Device: brokenDevice{}, Clock: clockwork.NewFakeClock(), BufferCache: &fakeBuffers{}})
	require.NoError(t, err)
	assert.Equal(t, EngineNoAudio, e.State())

	_, err = e.NewBuzz(Options{Sources: []string{"a.wav"}})
	assert.ErrorIs(t, err, ErrNoAudioCapability)

	require.NoError(t, e.Terminate())
	assert.Equal(t, EngineDone, e.State())
}

func TestAutoEnableResumesOnFirstPlay(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) { cfg.AutoEnable = true })
	events := watchEngine(te.Engine)

	assert.Equal(t, EngineNotReady, te.State())
	assert.True(t, te.device.Suspended())
	assert.Equal(t, graph.StateSuspended, te.Graph().State())

	b := te.buzz(t, Options{})
	_, err := b.Play()
	require.NoError(t, err)

	assert.Equal(t, EngineReady, te.State())
	assert.False(t, te.device.Suspended())
	assert.Equal(t, []EventType{EventResume}, events.types())
}

func TestSuspendStopsSounds(t *testing.T) {
	te := newTestEngine(t, nil)
	events := watchEngine(te.Engine)
	b := te.buzz(t, Options{})

	s := playing(t, b)

	require.NoError(t, te.Suspend())
	assert.Equal(t, EngineSuspended, te.State())
	assert.Equal(t, StateIdle, s.State())
	assert.True(t, te.device.Suspended())

	require.NoError(t, te.Resume())
	assert.Equal(t, EngineReady, te.State())
	assert.Equal(t, []EventType{EventSuspend, EventResume}, events.types())
}

func TestResumeWaitsForSuspend(t *testing.T) {
	gate := make(chan struct{})
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Device = &gatedDevice{Device: output.NewNull(), gate: gate}
	})
	events := watchEngine(te.Engine)

	done := make(chan error, 1)
	go func() { done <- te.Suspend() }()
	require.Eventually(t, func() bool { return te.State() == EngineSuspending }, waitFor, time.Millisecond)

	// Queued behind the suspend
	require.NoError(t, te.Resume())
	assert.Equal(t, EngineSuspending, te.State())

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, EngineReady, te.State())
	assert.Equal(t, []EventType{EventSuspend, EventResume}, events.types())
}

func TestSuspendWaitsForResume(t *testing.T) {
	dev := &gatedDevice{Device: output.NewNull()}
	te := newTestEngine(t, func(cfg *Config) {
		cfg.AutoEnable = true
		cfg.Device = dev
	})
	gate := make(chan struct{})
	dev.gate = gate
	events := watchEngine(te.Engine)

	done := make(chan error, 1)
	go func() { done <- te.Resume() }()
	require.Eventually(t, func() bool { return te.State() == EngineResuming }, waitFor, time.Millisecond)

	require.NoError(t, te.Suspend())
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, EngineSuspended, te.State())
	assert.Equal(t, []EventType{EventResume, EventSuspend}, events.types())
}

func TestTerminateDeferredDuringTransition(t *testing.T) {
	gate := make(chan struct{})
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Device = &gatedDevice{Device: output.NewNull(), gate: gate}
	})
	events := watchEngine(te.Engine)

	done := make(chan error, 1)
	go func() { done <- te.Suspend() }()
	require.Eventually(t, func() bool { return te.State() == EngineSuspending }, waitFor, time.Millisecond)

	require.NoError(t, te.Terminate())
	assert.Equal(t, EngineSuspending, te.State())

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, EngineDone, te.State())
	assert.Equal(t, []EventType{EventSuspend, EventDone}, events.types())
}

func TestTerminate(t *testing.T) {
	defer goleak.VerifyNone(t)

	var doneCalls int
	te := newTestEngine(t, func(cfg *Config) {
		cfg.OnDone = func(Event) { doneCalls++ }
	})

	sb := te.buzz(t, Options{Sources: []string{"music/theme.mp3"}, Stream: true})
	s := playing(t, sb)

	bb := te.buzz(t, Options{})
	_, err := bb.Play()
	require.NoError(t, err)

	require.NoError(t, te.Terminate())
	assert.Equal(t, EngineDone, te.State())
	assert.Equal(t, 1, doneCalls)
	assert.Equal(t, StateDestroyed, s.State())
	assert.Empty(t, te.Buzzes())
	assert.Empty(t, te.Pool().Stats())
	for _, n := range te.nodes.created() {
		assert.True(t, n.Closed())
	}
	assert.Contains(t, te.buffers.unloads(), []string(nil))
	assert.Equal(t, graph.StateClosed, te.Graph().State())

	_, err = te.NewBuzz(Options{Sources: []string{"a.wav"}})
	assert.ErrorIs(t, err, ErrDestroyed)

	// Idempotent
	require.NoError(t, te.Terminate())
	assert.Equal(t, 1, doneCalls)
}

func TestMasterVolumeAndMute(t *testing.T) {
	te := newTestEngine(t, nil)
	events := watchEngine(te.Engine)
	master := te.Graph().Destination()

	te.SetVolume(0.5)
	assert.Equal(t, 0.5, master.Value())

	te.Mute(true)
	assert.Equal(t, 0.0, master.Value())
	assert.Equal(t, 0.5, te.Volume())

	te.SetVolume(0.25)
	assert.Equal(t, 0.0, master.Value(), "muted output stays silent")

	te.Mute(false)
	assert.Equal(t, 0.25, master.Value())

	te.SetVolume(1.5)
	te.SetVolume(-1)
	assert.Equal(t, 0.25, te.Volume())

	assert.Equal(t, []EventType{EventVolume, EventMute, EventVolume, EventMute}, events.types())
}

func TestStartMuted(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Muted = true
		cfg.Volume = 0.8
	})
	assert.Equal(t, 0.0, te.Graph().Destination().Value())

	te.Mute(false)
	assert.Equal(t, 0.8, te.Graph().Destination().Value())
}

func TestZeroVolumeIsKept(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) { cfg.Volume = 0 })
	assert.Equal(t, 0.0, te.Volume())
	assert.Equal(t, 0.0, te.Graph().Destination().Value())

	silent := te.buzz(t, Options{Volume: Float64(0)})
	s, err := silent.NewSound()
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Volume())

	loud := te.buzz(t, Options{})
	s, err = loud.NewSound()
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Volume(), "nil volume defaults to 1")

	_, err = te.NewBuzz(Options{Sources: []string{"a.wav"}, Volume: Float64(1.5)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFreeDestroysIdleSounds(t *testing.T) {
	te := newTestEngine(t, nil)
	te.buffers.duration = 3600
	b := te.buzz(t, Options{})

	idle, err := b.NewSound()
	require.NoError(t, err)
	active := playing(t, b)

	te.clock.Advance(time.Minute)
	assert.Equal(t, 0, te.Free(), "not idle long enough")

	te.clock.Advance(DefaultIdleThreshold)
	assert.Equal(t, 1, te.Free())
	assert.Equal(t, StateDestroyed, idle.State())
	assert.Equal(t, []*Sound{active}, b.Sounds())
}

func TestFreeReturnsStreamNodes(t *testing.T) {
	te := newTestEngine(t, nil)
	b := te.buzz(t, Options{Sources: []string{"music/theme.mp3"}, Stream: true})

	require.NoError(t, b.Load(context.Background()))
	st := statsFor(te.Pool(), "music/theme.mp3")
	require.Equal(t, 1, st.Allocated)

	te.Free()
	st = statsFor(te.Pool(), "music/theme.mp3")
	assert.Equal(t, 0, st.Allocated)
	assert.Equal(t, 1, st.Unallocated)
}

func TestSweepRunsOnInterval(t *testing.T) {
	te := newTestEngine(t, nil)
	te.clock.BlockUntil(1)

	b := te.buzz(t, Options{})
	s, err := b.NewSound()
	require.NoError(t, err)

	te.clock.Advance(DefaultFreeInterval)
	waitState(t, s, StateDestroyed)
	assert.Empty(t, b.Sounds())
}
