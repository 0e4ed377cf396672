// ABOUTME: Shared test doubles for the playback engine tests
// ABOUTME: A scriptable streaming node and factories counting what they create
package buzz

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/buzz-go/pkg/media"
)

// fakeNode is a scriptable Node
type fakeNode struct {
	mu        sync.Mutex
	url       string
	src       string
	ready     bool
	playing   bool
	pos       float64
	duration  float64
	rate      float64
	volume    float64
	muted     bool
	closed    bool
	loads     int
	listeners map[int]media.Listener
	nextID    int

	// onLoad runs after Load; nil leaves readiness to the test
	onLoad func(n *fakeNode)
}

func newFakeNode(url string) *fakeNode {
	return &fakeNode{
		url:       url,
		rate:      1,
		volume:    1,
		duration:  2,
		listeners: make(map[int]media.Listener),
	}
}

func (n *fakeNode) Src() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.src
}

func (n *fakeNode) SetSrc(src string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.src = src
	n.ready = false
}

func (n *fakeNode) Load() error {
	n.mu.Lock()
	n.loads++
	n.ready = false
	hook := n.onLoad
	n.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (n *fakeNode) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

func (n *fakeNode) Play() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = true
	return nil
}

func (n *fakeNode) Pause() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = false
}

func (n *fakeNode) Playing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playing
}

func (n *fakeNode) CurrentTime() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pos
}

func (n *fakeNode) SetCurrentTime(t float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pos = t
}

func (n *fakeNode) Duration() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.duration
}

func (n *fakeNode) SetPlaybackRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rate = rate
}

func (n *fakeNode) SetVolume(v float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = v
}

func (n *fakeNode) SetMuted(muted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.muted = muted
}

func (n *fakeNode) Subscribe(fn media.Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func (n *fakeNode) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.playing = false
	n.listeners = make(map[int]media.Listener)
	return nil
}

func (n *fakeNode) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *fakeNode) Listeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (n *fakeNode) loadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loads
}

// emit fires ev to every listener; canplaythrough also marks the node ready
func (n *fakeNode) emit(ev media.Event, err error) {
	n.mu.Lock()
	if ev == media.EventCanPlayThrough {
		n.ready = true
	}
	listeners := make([]media.Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(ev, err)
	}
}

// nodeRecorder is a NodeFactory remembering every node it made
type nodeRecorder struct {
	mu     sync.Mutex
	nodes  []*fakeNode
	onLoad func(n *fakeNode)
}

func (r *nodeRecorder) factory(url string) Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := newFakeNode(url)
	n.onLoad = r.onLoad
	r.nodes = append(r.nodes, n)
	return n
}

func (r *nodeRecorder) created() []*fakeNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeNode(nil), r.nodes...)
}

// loading reports whether the i-th node has been created and started loading
func (r *nodeRecorder) loading(i int) func() bool {
	return func() bool {
		nodes := r.created()
		return len(nodes) > i && nodes[i].loadCount() > 0
	}
}

// readyOnLoad makes nodes buffer instantly
func readyOnLoad(n *fakeNode) {
	n.emit(media.EventCanPlayThrough, nil)
}

// writeTestWAV writes a mono 16-bit WAV of frames samples and returns its path
func writeTestWAV(t *testing.T, name string, sampleRate, frames int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, frames)
	for i := range data {
		data[i] = 1000
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}
