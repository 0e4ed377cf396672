// ABOUTME: Audio graph package documentation
// ABOUTME: Clocked mixing context, gain nodes and buffer sources
// Package graph provides a small audio graph: a Context with a running
// clock and master gain, Gain nodes that chain into it, and one-shot
// BufferSource voices. Output devices pull mixed PCM from the Context.
//
// Example:
//
//	ctx, _ := graph.NewContext(graph.Config{SampleRate: 48000, Channels: 2})
//	gain := graph.NewGain(0.8)
//	gain.Connect(ctx.Destination())
//	src := ctx.NewBufferSource(buf)
//	src.Connect(gain)
//	src.Start(0, 0)
package graph
