// ABOUTME: Streaming loader driving pooled nodes until they can play through
// ABOUTME: Tracks in-flight loads so Unload can cancel them in bulk
package buzz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/pkg/media"
)

// StreamResult is the outcome of a streaming load. Handle is valid only
// when Err is nil.
type StreamResult struct {
	URL    string
	Handle Handle
	Err    error
}

type outcome int

const (
	outcomeReady outcome = iota
	outcomeFailed
	outcomeCancelled
)

// inflight is one load waiting for its node
type inflight struct {
	url         string
	group       string
	handle      Handle
	unsubscribe func()
	done        chan StreamResult
}

// StreamLoader produces ready streaming handles for URLs
type StreamLoader struct {
	pool *Pool

	mu        sync.Mutex
	buffering map[uint64]*inflight
	nextID    uint64
}

// NewStreamLoader creates a loader over pool
func NewStreamLoader(pool *Pool) *StreamLoader {
	return &StreamLoader{
		pool:      pool,
		buffering: make(map[uint64]*inflight),
	}
}

// Pool returns the underlying pool
func (l *StreamLoader) Pool() *Pool { return l.pool }

// Load acquires a handle for url, scoped to group when group is non-empty,
// and blocks until the node can play through. Failures are reported in the
// result; a failed node is destroyed.
func (l *StreamLoader) Load(ctx context.Context, url, group string) StreamResult {
	return l.load(ctx, url, group, 0)
}

// LoadForSound is Load for a group handle that is bound to soundID from the
// moment it is allocated. Other sounds of the group never see it as free
// while it buffers. On cancellation the handle stays bound; the caller
// releases it with ReleaseForSound.
func (l *StreamLoader) LoadForSound(ctx context.Context, url, group string, soundID int) StreamResult {
	return l.load(ctx, url, group, soundID)
}

func (l *StreamLoader) load(ctx context.Context, url, group string, soundID int) StreamResult {
	var (
		h   Handle
		err error
	)
	switch {
	case group == "":
		h, err = l.pool.AllocateForSource(url)
	case soundID != 0:
		h, err = l.pool.AllocateBound(url, group, soundID)
	default:
		h, err = l.pool.AllocateForGroup(url, group)
	}
	if err != nil {
		return StreamResult{URL: url, Err: err}
	}

	fl := &inflight{
		url:    url,
		group:  group,
		handle: h,
		done:   make(chan StreamResult, 1),
	}

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.buffering[id] = fl
	l.mu.Unlock()

	unsubscribe := h.Node.Subscribe(func(ev media.Event, err error) {
		switch ev {
		case media.EventCanPlayThrough:
			l.settle(id, outcomeReady, nil)
		case media.EventError:
			l.settle(id, outcomeFailed, err)
		}
	})
	defer unsubscribe()

	l.mu.Lock()
	if _, ok := l.buffering[id]; ok {
		fl.unsubscribe = unsubscribe
	}
	l.mu.Unlock()

	if h.Node.Src() == "" {
		h.Node.SetSrc(url)
		if err := h.Node.Load(); err != nil {
			l.settle(id, outcomeFailed, err)
		}
	} else {
		h.Node.SetCurrentTime(0)
		if h.Node.Ready() {
			l.settle(id, outcomeReady, nil)
		}
	}

	var res StreamResult
	select {
	case res = <-fl.done:
	case <-ctx.Done():
		l.settle(id, outcomeCancelled, ctx.Err())
		res = <-fl.done
	}

	// Destroy outside node callbacks; closing a node waits for its decoder
	if res.Err != nil && errors.Is(res.Err, ErrLoadFailure) {
		l.pool.DestroyAllocatedAudio(url, group, h)
	}

	return res
}

// settle resolves an in-flight load. The first outcome wins; later ones
// find the load gone and are dropped.
func (l *StreamLoader) settle(id uint64, o outcome, cause error) {
	l.mu.Lock()
	fl, ok := l.buffering[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.buffering, id)
	l.mu.Unlock()

	res := StreamResult{URL: fl.url}
	switch o {
	case outcomeReady:
		res.Handle = fl.handle
	case outcomeFailed:
		if cause == nil {
			cause = errors.New("unknown media error")
		}
		res.Err = fmt.Errorf("%w: %s: %w", ErrLoadFailure, fl.url, cause)
		log.Warnf("Streaming load of %s failed: %v", fl.url, cause)
	case outcomeCancelled:
		if cause != nil {
			res.Err = fmt.Errorf("%w: %s: %w", ErrLoadCancelled, fl.url, cause)
		} else {
			res.Err = fmt.Errorf("%w: %s", ErrLoadCancelled, fl.url)
		}
	}
	fl.done <- res
}

// Unload cancels in-flight loads for urls, or for every in-flight load when
// none are given, and releases each URL's handles. A URL named explicitly is
// released even when its load already completed.
func (l *StreamLoader) Unload(urls ...string) {
	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[u] = true
	}

	l.mu.Lock()
	var cancelled []uint64
	release := make(map[string]bool)
	for id, fl := range l.buffering {
		if len(urls) == 0 || want[fl.url] {
			cancelled = append(cancelled, id)
			release[fl.url] = true
			if fl.unsubscribe != nil {
				fl.unsubscribe()
			}
		}
	}
	l.mu.Unlock()

	for _, id := range cancelled {
		l.settle(id, outcomeCancelled, nil)
	}

	for u := range want {
		release[u] = true
	}
	for u := range release {
		log.Debugf("Releasing streaming nodes for %s", u)
		l.pool.ReleaseForSource(u)
	}
}

// Buffering returns the number of loads in flight
func (l *StreamLoader) Buffering() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffering)
}

// AllocateForSound binds a group handle to a sound
func (l *StreamLoader) AllocateForSound(url, group string, soundID int) (Handle, error) {
	return l.pool.AllocateForSound(url, group, soundID)
}

// ReleaseForSound unbinds a sound's handle
func (l *StreamLoader) ReleaseForSound(url, group string, soundID int) {
	l.pool.ReleaseForSound(url, group, soundID)
}

// ReleaseForGroup returns a group's handles to the pool
func (l *StreamLoader) ReleaseForGroup(url, group string, freeOnly bool) {
	l.pool.ReleaseForGroup(url, group, freeOnly)
}

// HasFreeNodes reports whether group can bind a handle for url
func (l *StreamLoader) HasFreeNodes(url, group string) bool {
	return l.pool.HasFreeNodes(url, group)
}

// DestroyAllocatedAudio removes and tears down a group handle
func (l *StreamLoader) DestroyAllocatedAudio(url, group string, h Handle) {
	l.pool.DestroyAllocatedAudio(url, group, h)
}

// CleanUp returns unbound handles to the pool
func (l *StreamLoader) CleanUp() {
	l.pool.CleanUp()
}

// Dispose cancels every in-flight load and tears down the pool
func (l *StreamLoader) Dispose() {
	l.mu.Lock()
	var cancelled []uint64
	for id := range l.buffering {
		cancelled = append(cancelled, id)
	}
	l.mu.Unlock()

	for _, id := range cancelled {
		l.settle(id, outcomeCancelled, nil)
	}
	l.pool.Dispose()
}
