// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

// Encoder encodes PCM int32 samples to device byte formats
type Encoder interface {
	// Encode converts PCM samples to encoded audio data
	Encode(samples []int32) ([]byte, error)

	// EncodeInto writes encoded samples into dst and returns the byte count
	EncodeInto(dst []byte, samples []int32) int

	// Close releases encoder resources
	Close() error
}

var _ Encoder = (*PCMEncoder)(nil)
