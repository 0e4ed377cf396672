// ABOUTME: Playback engine package documentation
// ABOUTME: Shows how the engine, groups and sounds fit together
// Package buzz is a sound playback engine. An Engine owns the audio graph
// and output device; each Buzz is a group of sounds sharing one resource;
// each Sound is a single playing instance with its own state machine.
//
// Short effects are decoded into memory by a BufferLoader and played from a
// graph buffer source. Long resources set Options.Stream and play through a
// bounded pool of streaming nodes that decode while they play.
//
// Basic usage:
//
//	engine, err := buzz.New(buzz.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer engine.Terminate()
//
//	laser, err := engine.NewBuzz(buzz.Options{
//	    Sources: []string{"sfx/laser.ogg", "sfx/laser.wav"},
//	    Regions: map[string]buzz.Region{"short": {Start: 0, End: 0.25}},
//	})
//	if err != nil {
//	    return err
//	}
//	laser.On(buzz.EventPlayEnd, func(ev buzz.Event) { ... })
//	sound, err := laser.PlayRegion("short")
//
// Operations requested before a sound has loaded are queued and applied in
// order once it has. Load failures are reported through EventError, never
// by panicking or blocking the caller.
package buzz
