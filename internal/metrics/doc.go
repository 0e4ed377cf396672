// ABOUTME: Metrics package documentation
// ABOUTME: Prometheus view of the streaming pool and the buffer loader
// Package metrics exports playback engine state to Prometheus. Values are
// read from the engine on every scrape, so nothing needs to be recorded on
// the playback path.
package metrics
