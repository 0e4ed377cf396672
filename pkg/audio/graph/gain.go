// ABOUTME: Gain node for the audio graph
// ABOUTME: A single multiplier stage that can feed another gain node
package graph

import "sync"

// Gain scales the signal passing through it
type Gain struct {
	mu    sync.Mutex
	value float64
	dest  *Gain
	root  bool
}

// NewGain creates an unconnected gain node
func NewGain(value float64) *Gain {
	return &Gain{value: value}
}

// Value returns the gain value
func (g *Gain) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// SetValue sets the gain value
func (g *Gain) SetValue(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Connect routes this node into dst
func (g *Gain) Connect(dst *Gain) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dest = dst
}

// Disconnect detaches this node from its destination
func (g *Gain) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dest = nil
}

// Connected reports whether the node feeds another node
func (g *Gain) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dest != nil
}

// Level returns the product of every node from this one to the destination.
// A chain that does not end at a context destination is silent.
func (g *Gain) Level() float64 {
	level := 1.0
	for node := g; node != nil; {
		node.mu.Lock()
		level *= node.value
		next := node.dest
		root := node.root
		node.mu.Unlock()

		if next == nil {
			if !root {
				return 0
			}
			break
		}
		node = next
	}
	return level
}
