// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 audio to int32 samples using go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
}

// NewMP3 creates a new MP3 decoder reading from r
func NewMP3(r io.Reader) (Stream, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &MP3Decoder{
		decoder: decoder,
		format: audio.Format{
			Codec:      "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   2, // go-mp3 always outputs stereo
			BitDepth:   16,
		},
	}, nil
}

// Read converts decoded MP3 bytes to int32 samples
func (d *MP3Decoder) Read(samples []int32) (int, error) {
	numBytes := len(samples) * 2
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	buf := d.buf[:numBytes]

	n, err := d.decoder.Read(buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	return numSamples, err
}

// Format returns the decoded format
func (d *MP3Decoder) Format() audio.Format { return d.format }

// Frames returns the total frame count when the source is seekable
func (d *MP3Decoder) Frames() int64 {
	length := d.decoder.Length()
	if length <= 0 {
		return -1
	}
	// 2 channels * 2 bytes per sample
	return length / 4
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return nil
}
