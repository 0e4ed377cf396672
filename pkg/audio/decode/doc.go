// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides the Stream interface and decoders for MP3, FLAC, WAV, Ogg Opus and PCM
// Package decode provides pull-based audio decoders.
//
// Supports: MP3, FLAC, WAV, Ogg Opus and raw PCM (16-bit and 24-bit).
//
// All decoders implement the Stream interface and output interleaved int32
// samples in 24-bit range.
//
// Example:
//
//	stream, err := decode.OpenFile("laser.mp3")
//	buf, err := decode.ReadAll(stream)
package decode
