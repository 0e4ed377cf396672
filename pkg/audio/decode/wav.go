// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE PCM to int32 samples using go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

const wavHeaderSize = 44

// WAVDecoder decodes WAV audio
type WAVDecoder struct {
	decoder *wav.Decoder
	format  audio.Format
	frames  int64
	buf     *goaudio.IntBuffer
}

// NewWAV creates a new WAV decoder reading from r
func NewWAV(r io.ReadSeeker) (Stream, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to size WAV data: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind WAV data: %w", err)
	}

	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}

	if decoder.BitDepth != 8 && decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}

	format := audio.Format{
		Codec:      "wav",
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}

	// Estimated from the container size; exact count comes from ReadAll
	frames := (size - wavHeaderSize) / int64(format.BitDepth/8) / int64(format.Channels)

	return &WAVDecoder{
		decoder: decoder,
		format:  format,
		frames:  frames,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		},
	}, nil
}

// Read converts WAV PCM to int32 samples in 24-bit range
func (d *WAVDecoder) Read(samples []int32) (int, error) {
	if cap(d.buf.Data) < len(samples) {
		d.buf.Data = make([]int, len(samples))
	}
	d.buf.Data = d.buf.Data[:len(samples)]

	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		v := int32(d.buf.Data[i])
		if d.format.BitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		samples[i] = audio.ScaleToBitDepth(v, d.format.BitDepth)
	}

	return n, nil
}

// Format returns the decoded format
func (d *WAVDecoder) Format() audio.Format { return d.format }

// Frames returns the estimated frame count
func (d *WAVDecoder) Frames() int64 { return d.frames }

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return nil
}
