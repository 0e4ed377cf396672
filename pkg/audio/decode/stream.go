// ABOUTME: Stream interface and helpers shared by all decoders
// ABOUTME: Opens encoded audio by name or content sniffing and drains streams into buffers
package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// Stream is a pull-based source of decoded PCM
type Stream interface {
	// Read fills samples with interleaved PCM in 24-bit range.
	// Returns the number of samples written; io.EOF marks the end of the stream.
	Read(samples []int32) (int, error)

	// Format describes the decoded PCM
	Format() audio.Format

	// Frames returns the total number of frames, or -1 when unknown
	Frames() int64

	// Close releases decoder resources
	Close() error
}

// ErrUnsupportedFormat is returned when no decoder matches the input
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// CodecFromName guesses the codec from a file name or URL
func CodecFromName(name string) string {
	name = strings.SplitN(name, "?", 2)[0]
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".wav", ".wave":
		return "wav"
	case ".opus", ".ogg", ".oga":
		return "opus"
	default:
		return ""
	}
}

// Sniff guesses the codec from the first bytes of the data
func Sniff(head []byte) string {
	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(head, []byte("RIFF")) && len(head) >= 12 && string(head[8:12]) == "WAVE":
		return "wav"
	case bytes.HasPrefix(head, []byte("OggS")):
		return "opus"
	case bytes.HasPrefix(head, []byte("ID3")):
		return "mp3"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}

// Open creates a Stream for the encoded data in rc. The codec is picked
// from the name first and from the content otherwise. The returned stream
// owns rc.
func Open(name string, rc io.ReadCloser) (Stream, error) {
	codec := CodecFromName(name)

	var r io.Reader = rc
	if codec == "" {
		br := bufio.NewReader(rc)
		head, _ := br.Peek(12)
		codec = Sniff(head)
		r = br
	}

	var (
		s   Stream
		err error
	)
	switch codec {
	case "mp3":
		s, err = NewMP3(r)
	case "flac":
		s, err = NewFLAC(r)
	case "opus":
		s, err = NewOpus(r)
	case "wav":
		rs, ok := r.(io.ReadSeeker)
		if !ok {
			data, readErr := io.ReadAll(r)
			if readErr != nil {
				rc.Close()
				return nil, fmt.Errorf("failed to read WAV data: %w", readErr)
			}
			rs = bytes.NewReader(data)
		}
		s, err = NewWAV(rs)
	default:
		rc.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		rc.Close()
		return nil, err
	}

	return &closingStream{Stream: s, closer: rc}, nil
}

// OpenFile opens and decodes a local audio file
func OpenFile(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	return Open(path, f)
}

// ReadAll drains a stream into a Buffer and closes it
func ReadAll(s Stream) (*audio.Buffer, error) {
	defer s.Close()

	format := s.Format()
	capacity := 0
	if frames := s.Frames(); frames > 0 {
		capacity = int(frames) * format.Channels
	}

	samples := make([]int32, 0, capacity)
	chunk := make([]int32, 4096*format.Channels)
	for {
		n, err := s.Read(chunk)
		samples = append(samples, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode failed: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return &audio.Buffer{Samples: samples, Format: format}, nil
}

// closingStream closes the underlying reader along with the decoder
type closingStream struct {
	Stream
	closer io.Closer
}

func (c *closingStream) Close() error {
	err := c.Stream.Close()
	if cerr := c.closer.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = cerr
	}
	return err
}
