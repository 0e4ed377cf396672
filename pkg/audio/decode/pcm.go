// ABOUTME: Raw PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit little-endian PCM to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// PCMDecoder decodes raw PCM audio
type PCMDecoder struct {
	r      io.Reader
	format audio.Format
	buf    []byte
}

// NewPCM creates a new raw PCM decoder; format describes the input
func NewPCM(r io.Reader, format audio.Format) (Stream, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		r:      r,
		format: format,
	}, nil
}

// Read converts PCM bytes to int32 samples
func (d *PCMDecoder) Read(samples []int32) (int, error) {
	width := d.format.BitDepth / 8
	numBytes := len(samples) * width
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	data := d.buf[:numBytes]

	n, err := io.ReadFull(d.r, data)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	numSamples := n / width
	for i := 0; i < numSamples; i++ {
		if width == 3 {
			samples[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
		} else {
			samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	}

	return numSamples, err
}

// Format returns the decoded format
func (d *PCMDecoder) Format() audio.Format { return d.format }

// Frames is unknown for raw PCM readers
func (d *PCMDecoder) Frames() int64 { return -1 }

// Close releases decoder resources
func (d *PCMDecoder) Close() error {
	return nil
}
