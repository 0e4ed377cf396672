// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device interface and oto, malgo, PortAudio and null backends
// Package output provides audio playback devices.
//
// Devices pull encoded PCM from an io.Reader (usually the audio graph) from
// their own hardware callback. Suspend and Resume pause the hardware stream
// without tearing it down.
//
// Example:
//
//	out, err := output.New(output.BackendOto)
//	err = out.Open(audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, graph)
package output
