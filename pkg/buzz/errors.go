// ABOUTME: Error values returned by the playback engine
// ABOUTME: Sentinels for errors.Is and PoolError naming the resource or group
package buzz

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAudioCapability means no output device could be opened
	ErrNoAudioCapability = errors.New("no audio capability")

	// ErrPoolExhausted means a resource reached its streaming node limit
	ErrPoolExhausted = errors.New("streaming node pool exhausted")

	// ErrNoFreeNodes means a group has no handle left to bind to a sound
	ErrNoFreeNodes = errors.New("no free streaming nodes")

	// ErrLoadFailure wraps network and decode failures
	ErrLoadFailure = errors.New("load failed")

	// ErrLoadCancelled is reported for loads abandoned by Unload or by their
	// caller's context
	ErrLoadCancelled = errors.New("load cancelled")

	// ErrInvalidArgument is returned for out of range configuration
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDestroyed is returned by operations on a destroyed sound, group or engine
	ErrDestroyed = errors.New("destroyed")

	// ErrUnknownRegion is returned when playing a region that was never defined
	ErrUnknownRegion = errors.New("unknown region")
)

// PoolError reports a structural pool failure for a resource or group
type PoolError struct {
	Op       string
	Resource string
	Group    string
	Err      error
}

func (e *PoolError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("%s: %v for group %q on %q", e.Op, e.Err, e.Group, e.Resource)
	}
	return fmt.Sprintf("%s: %v for resource %q", e.Op, e.Err, e.Resource)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}
