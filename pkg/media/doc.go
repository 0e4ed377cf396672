// ABOUTME: Media package documentation
// ABOUTME: Describes the streaming element lifecycle and its events
// Package media provides Element, a streaming playback primitive. An element
// decodes its source in a background goroutine while it plays, so memory use
// stays bounded regardless of the source length.
//
// Lifecycle:
//
//	el := media.New(graphCtx, media.FetchOpener(fetcher))
//	el.Subscribe(func(ev media.Event, err error) { ... })
//	el.SetSrc("https://example.com/music.mp3")
//	el.Load()   // EventCanPlayThrough or EventError
//	el.Play()   // EventEnded at the end of the source
//
// Seeking with SetCurrentTime rebuffers and fires EventCanPlayThrough again.
package media
