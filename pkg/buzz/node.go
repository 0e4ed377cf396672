// ABOUTME: Streaming node abstraction held by pool handles
// ABOUTME: Satisfied by media.Element; tests substitute their own nodes
package buzz

import "github.com/Resonate-Protocol/buzz-go/pkg/media"

// Node is a streaming playback primitive
type Node interface {
	Src() string
	SetSrc(src string)
	Load() error
	Ready() bool
	Play() error
	Pause()
	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	SetPlaybackRate(rate float64)
	SetVolume(v float64)
	SetMuted(muted bool)
	Subscribe(fn media.Listener) func()
	Close() error
}

// NodeFactory creates the node for a new handle on url
type NodeFactory func(url string) Node

var _ Node = (*media.Element)(nil)
