// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides fundamental audio types shared by the decoders,
// the audio graph and the output devices.
//
// All PCM is carried as interleaved int32 samples in the 24-bit range:
//   - Format: describes a stream (codec, sample rate, channels, bit depth)
//   - Buffer: fully decoded PCM, used by the buffer playback backend
//
// Example:
//
//	buf := &audio.Buffer{
//	    Samples: samples,
//	    Format:  audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 24},
//	}
//	fmt.Println(buf.Duration())
package audio
