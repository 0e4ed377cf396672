// ABOUTME: Events emitted by sounds, groups and the engine
// ABOUTME: One payload type carries the sound, resource and any error
package buzz

// EventType names an event
type EventType string

const (
	EventLoad      EventType = "load"
	EventError     EventType = "error"
	EventPlay      EventType = "play"
	EventPlayStart EventType = "playstart"
	EventPlayEnd   EventType = "playend"
	EventStop      EventType = "stop"
	EventPause     EventType = "pause"
	EventMute      EventType = "mute"
	EventVolume    EventType = "volume"
	EventRate      EventType = "rate"
	EventSeek      EventType = "seek"
	EventDestroy   EventType = "destroy"
	EventSuspend   EventType = "suspend"
	EventResume    EventType = "resume"
	EventDone      EventType = "done"
)

// Event is delivered to callbacks. SoundID is 0 for group and engine events.
type Event struct {
	Type    EventType
	SoundID int
	URL     string
	Err     error
}

// Callback receives events
type Callback func(Event)
