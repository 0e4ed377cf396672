// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC audio frame by frame to int32 samples
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	stream  *flac.Stream
	format  audio.Format
	frames  int64
	pending []int32
}

// NewFLAC creates a new FLAC decoder reading from r
func NewFLAC(r io.Reader) (Stream, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	frames := int64(info.NSamples)
	if frames == 0 {
		frames = -1
	}

	return &FLACDecoder{
		stream: stream,
		frames: frames,
		format: audio.Format{
			Codec:      "flac",
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   int(info.BitsPerSample),
		},
	}, nil
}

// Read converts FLAC frames to interleaved int32 samples
func (d *FLACDecoder) Read(samples []int32) (int, error) {
	read := 0
	for read < len(samples) {
		if len(d.pending) == 0 {
			frame, err := d.stream.ParseNext()
			if err == io.EOF {
				return read, io.EOF
			}
			if err != nil {
				return read, fmt.Errorf("flac decode error: %w", err)
			}

			// Interleave the subframes, scaled to 24-bit range
			channels := d.format.Channels
			for i := 0; i < int(frame.BlockSize); i++ {
				for ch := 0; ch < channels; ch++ {
					d.pending = append(d.pending,
						audio.ScaleToBitDepth(frame.Subframes[ch].Samples[i], d.format.BitDepth))
				}
			}
		}

		n := copy(samples[read:], d.pending)
		d.pending = d.pending[n:]
		read += n
	}

	return read, nil
}

// Format returns the decoded format
func (d *FLACDecoder) Format() audio.Format { return d.format }

// Frames returns the total frame count from STREAMINFO
func (d *FLACDecoder) Frames() int64 { return d.frames }

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return d.stream.Close()
}
