// ABOUTME: Scoped event emitter
// ABOUTME: Handlers are keyed by scope and event name and run outside the lock
package events

import (
	"sort"
	"sync"
)

// Handler receives an event payload
type Handler[E any] func(E)

type registration[E any] struct {
	id   uint64
	fn   Handler[E]
	once bool
}

// Emitter dispatches events to handlers registered per scope
type Emitter[E any] struct {
	mu       sync.Mutex
	handlers map[string]map[string][]registration[E]
	nextID   uint64
}

// New creates an empty emitter
func New[E any]() *Emitter[E] {
	return &Emitter[E]{
		handlers: make(map[string]map[string][]registration[E]),
		nextID:   1,
	}
}

// On registers fn for event in scope and returns its id
func (e *Emitter[E]) On(scope, event string, fn Handler[E]) uint64 {
	return e.add(scope, event, fn, false)
}

// Once registers fn to run on the next event only
func (e *Emitter[E]) Once(scope, event string, fn Handler[E]) uint64 {
	return e.add(scope, event, fn, true)
}

func (e *Emitter[E]) add(scope, event string, fn Handler[E], once bool) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	events, ok := e.handlers[scope]
	if !ok {
		events = make(map[string][]registration[E])
		e.handlers[scope] = events
	}

	id := e.nextID
	e.nextID++
	events[event] = append(events[event], registration[E]{id: id, fn: fn, once: once})
	return id
}

// Off removes the handler with id, or every handler for event when id is 0
func (e *Emitter[E]) Off(scope, event string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	events, ok := e.handlers[scope]
	if !ok {
		return
	}
	if id == 0 {
		delete(events, event)
		return
	}

	regs := events[event]
	for i, r := range regs {
		if r.id == id {
			events[event] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Fire runs every handler for event in scope in registration order
func (e *Emitter[E]) Fire(scope, event string, payload E) {
	e.mu.Lock()
	events, ok := e.handlers[scope]
	if !ok {
		e.mu.Unlock()
		return
	}

	regs := events[event]
	fns := make([]Handler[E], 0, len(regs))
	kept := regs[:0:0]
	for _, r := range regs {
		fns = append(fns, r.fn)
		if !r.once {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(events, event)
	} else {
		events[event] = kept
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// Clear removes every handler in scope
func (e *Emitter[E]) Clear(scope string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, scope)
}

// Count returns the number of handlers for event in scope
func (e *Emitter[E]) Count(scope, event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[scope][event])
}

// Scopes returns every scope with handlers, sorted
func (e *Emitter[E]) Scopes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	scopes := make([]string, 0, len(e.handlers))
	for s := range e.handlers {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}
