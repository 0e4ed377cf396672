// ABOUTME: Phase keyed action queue
// ABOUTME: Defers work until a named phase is reached; same-key actions replace each other
package queue

import "sync"

type action struct {
	key string
	fn  func()
}

// Queue holds actions waiting for a phase
type Queue struct {
	mu     sync.Mutex
	phases map[string][]action
}

// New creates an empty queue
func New() *Queue {
	return &Queue{phases: make(map[string][]action)}
}

// Add queues fn for phase. An action already queued under key is replaced
// in place and keeps its position.
func (q *Queue) Add(phase, key string, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	actions := q.phases[phase]
	for i := range actions {
		if actions[i].key == key {
			actions[i].fn = fn
			return
		}
	}
	q.phases[phase] = append(actions, action{key: key, fn: fn})
}

// Run removes the actions for phase and runs them in order
func (q *Queue) Run(phase string) {
	q.mu.Lock()
	actions := q.phases[phase]
	delete(q.phases, phase)
	q.mu.Unlock()

	for _, a := range actions {
		a.fn()
	}
}

// Remove drops the actions for phase without running them
func (q *Queue) Remove(phase string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.phases, phase)
}

// Clear drops every queued action
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.phases = make(map[string][]action)
}

// Len returns the number of actions queued for phase
func (q *Queue) Len(phase string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.phases[phase])
}
