// ABOUTME: Audio encoder package for encoding PCM to device byte formats
// ABOUTME: Provides Encoder interface and the PCM implementation
// Package encode turns int32 samples in 24-bit range into the little-endian
// byte layouts output devices expect.
//
// Supports: PCM 16-bit, 24-bit and 32-bit.
//
// Example:
//
//	encoder, err := encode.NewPCM(audio.Format{Codec: "pcm", BitDepth: 16})
//	n := encoder.EncodeInto(dst, samples)
package encode
