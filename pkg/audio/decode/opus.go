// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files to int32 samples using libopusfile
package decode

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

// OpusDecoder decodes Ogg Opus audio
type OpusDecoder struct {
	stream *opus.Stream
	format audio.Format
	pcm16  []int16
}

// NewOpus creates a new Ogg Opus decoder reading from r
func NewOpus(r io.Reader) (Stream, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, _ := br.Peek(4096)

	channels := opusChannels(head)

	stream, err := opus.NewStream(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}

	return &OpusDecoder{
		stream: stream,
		format: audio.Format{
			Codec:      "opus",
			SampleRate: opusSampleRate,
			Channels:   channels,
			BitDepth:   16,
		},
	}, nil
}

// opusChannels reads the channel count from the OpusHead packet, defaulting to stereo
func opusChannels(head []byte) int {
	idx := bytes.Index(head, []byte("OpusHead"))
	if idx < 0 || len(head) <= idx+9 || head[idx+9] == 0 {
		return 2
	}
	return int(head[idx+9])
}

// Read converts decoded Opus PCM to int32 samples
func (d *OpusDecoder) Read(samples []int32) (int, error) {
	if cap(d.pcm16) < len(samples) {
		d.pcm16 = make([]int16, len(samples))
	}
	pcm := d.pcm16[:len(samples)]

	n, err := d.stream.Read(pcm)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}

	// n counts samples per channel
	total := n * d.format.Channels
	for i := 0; i < total; i++ {
		samples[i] = audio.SampleFromInt16(pcm[i])
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	return total, err
}

// Format returns the decoded format
func (d *OpusDecoder) Format() audio.Format { return d.format }

// Frames is unknown for Ogg Opus streams
func (d *OpusDecoder) Frames() int64 { return -1 }

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return d.stream.Close()
}
