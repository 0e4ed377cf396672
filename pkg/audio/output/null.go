// ABOUTME: Null audio output that never touches hardware
// ABOUTME: Used for headless runs and tests; audio is only pulled on demand
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// Null is a Device without hardware. Pull drains the source manually.
type Null struct {
	mu        sync.Mutex
	src       io.Reader
	format    audio.Format
	suspended bool
	closed    bool
}

// NewNull creates a new Null output
func NewNull() Device {
	return &Null{}
}

// Open records the source
func (n *Null) Open(format audio.Format, src io.Reader) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return fmt.Errorf("output closed")
	}
	n.src = src
	n.format = format
	return nil
}

// Pull reads size bytes from the source as a hardware callback would.
// Nothing is read while suspended.
func (n *Null) Pull(size int) ([]byte, error) {
	n.mu.Lock()
	src, suspended := n.src, n.suspended
	n.mu.Unlock()

	if src == nil {
		return nil, fmt.Errorf("output not initialized")
	}
	if suspended {
		return nil, nil
	}

	buf := make([]byte, size)
	read, err := io.ReadFull(src, buf)
	return buf[:read], err
}

// Suspended reports whether Suspend was called last
func (n *Null) Suspended() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.suspended
}

// Suspend marks the output suspended
func (n *Null) Suspend() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspended = true
	return nil
}

// Resume marks the output running
func (n *Null) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspended = false
	return nil
}

// Close releases the source
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.src = nil
	return nil
}
