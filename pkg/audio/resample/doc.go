// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded buffers between sample rates
// Package resample converts decoded audio between sample rates.
//
// Conversion is linear interpolation over whole buffers; the graph plays
// every buffer at its own rate, so files are converted once after decoding.
//
// Example:
//
//	converted := resample.Buffer(buf, 48000)
package resample
