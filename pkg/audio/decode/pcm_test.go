// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests 16-bit and 24-bit PCM decoding
package decode

import (
	"bytes"
	"io"
	"testing"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	format := audio.Format{
		Codec:      "pcm",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewPCM(bytes.NewReader(nil), format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder == nil {
		t.Fatal("expected decoder to be created")
	}
}

func TestNewPCM_InvalidCodec(t *testing.T) {
	format := audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16}

	decoder, err := NewPCM(bytes.NewReader(nil), format)
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for PCM decoder: opus"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestNewPCM_UnsupportedBitDepth(t *testing.T) {
	format := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 32}

	if _, err := NewPCM(bytes.NewReader(nil), format); err == nil {
		t.Fatal("expected error for 32-bit PCM")
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	format := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}

	// 0x00, 0x01 -> 0x0100 = 256 (16-bit) -> 256<<8 = 65536 (24-bit)
	// 0x02, 0x03 -> 0x0302 = 770 (16-bit) -> 770<<8 = 197120 (24-bit)
	input := []byte{0x00, 0x01, 0x02, 0x03}
	decoder, err := NewPCM(bytes.NewReader(input), format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	output := make([]int32, 4)
	n, err := decoder.Read(output)
	if err != io.EOF {
		t.Fatalf("expected io.EOF on short input, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 samples, got %d", n)
	}

	if output[0] != 256<<8 {
		t.Errorf("expected first sample %d, got %d", 256<<8, output[0])
	}
	if output[1] != 770<<8 {
		t.Errorf("expected second sample %d, got %d", 770<<8, output[1])
	}
}

func TestPCMDecode24Bit(t *testing.T) {
	format := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 1, BitDepth: 24}

	input := []byte{0x56, 0x34, 0x12, 0x00, 0xFF, 0xFF}
	decoder, err := NewPCM(bytes.NewReader(input), format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	output := make([]int32, 2)
	n, err := decoder.Read(output)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 samples, got %d", n)
	}
	if output[0] != 0x123456 {
		t.Errorf("expected 0x123456, got %#x", output[0])
	}
	if output[1] != -256 {
		t.Errorf("expected -256, got %d", output[1])
	}
}

func TestReadAllPCM(t *testing.T) {
	format := audio.Format{Codec: "pcm", SampleRate: 8000, Channels: 2, BitDepth: 16}

	// One second of stereo silence
	input := make([]byte, 8000*2*2)
	decoder, err := NewPCM(bytes.NewReader(input), format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	buf, err := ReadAll(decoder)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if buf.Frames() != 8000 {
		t.Errorf("expected 8000 frames, got %d", buf.Frames())
	}
	if buf.Duration() != 1.0 {
		t.Errorf("expected 1s, got %f", buf.Duration())
	}
}
