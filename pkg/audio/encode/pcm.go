// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to 16-bit, 24-bit or 32-bit PCM bytes for output devices
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 && format.BitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// BytesPerSample returns the encoded width of one sample
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*e.BytesPerSample())
	e.EncodeInto(output, samples)
	return output, nil
}

// EncodeInto writes as many samples as fit into dst and returns the byte count
func (e *PCMEncoder) EncodeInto(dst []byte, samples []int32) int {
	width := e.BytesPerSample()
	n := len(dst) / width
	if n > len(samples) {
		n = len(samples)
	}

	for i := 0; i < n; i++ {
		sample := samples[i]
		switch e.bitDepth {
		case 24:
			b := audio.SampleTo24Bit(sample)
			copy(dst[i*3:], b[:])
		case 32:
			// Shift 24-bit value to upper bits of 32-bit container
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(sample<<8))
		default:
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(sample)))
		}
	}

	return n * width
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
