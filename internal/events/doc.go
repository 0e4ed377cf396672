// ABOUTME: Event emitter package documentation
// ABOUTME: Explains scopes, one-shot handlers and dispatch order
// Package events provides a small scoped emitter. Each sound group uses its
// own scope so clearing a group drops all of its handlers at once. Handlers
// run on the firing goroutine after the emitter lock is released, so they
// may register or remove handlers themselves.
package events
