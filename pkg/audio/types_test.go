// ABOUTME: Tests for audio types
// ABOUTME: Tests buffer geometry, sample width conversions and clamping
package audio

import "testing"

func TestInt16Conversions(t *testing.T) {
	for _, s := range []int16{0, 1, -1, 1000, -1000, 32767, -32768} {
		wide := SampleFromInt16(s)
		if wide != int32(s)*256 {
			t.Errorf("SampleFromInt16(%d) = %d, want %d", s, wide, int32(s)*256)
		}
		if back := SampleToInt16(wide); back != s {
			t.Errorf("round trip of %d gave %d", s, back)
		}
	}

	// Low byte of a 24-bit sample is dropped
	if got := SampleToInt16(0x1234FF); got != 0x1234 {
		t.Errorf("SampleToInt16(0x1234FF) = %#x, want 0x1234", got)
	}
}

func TestPacked24Bit(t *testing.T) {
	tests := []struct {
		sample int32
		packed [3]byte
	}{
		{0, [3]byte{0, 0, 0}},
		{0x123456, [3]byte{0x56, 0x34, 0x12}},
		{-1, [3]byte{0xFF, 0xFF, 0xFF}},
		{Max24Bit, [3]byte{0xFF, 0xFF, 0x7F}},
		{Min24Bit, [3]byte{0x00, 0x00, 0x80}},
	}

	for _, tt := range tests {
		if got := SampleTo24Bit(tt.sample); got != tt.packed {
			t.Errorf("SampleTo24Bit(%d) = %v, want %v", tt.sample, got, tt.packed)
		}
		if got := SampleFrom24Bit(tt.packed); got != tt.sample {
			t.Errorf("SampleFrom24Bit(%v) = %d, want %d", tt.packed, got, tt.sample)
		}
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{
		Samples: make([]int32, 48000*2),
		Format:  Format{SampleRate: 48000, Channels: 2, BitDepth: 16},
	}

	if buf.Frames() != 48000 {
		t.Errorf("expected 48000 frames, got %d", buf.Frames())
	}
	if buf.Duration() != 1.0 {
		t.Errorf("expected 1s duration, got %f", buf.Duration())
	}

	var empty *Buffer
	if empty.Duration() != 0 {
		t.Errorf("expected nil buffer duration 0, got %f", empty.Duration())
	}
}

func TestBufferFrameMonoFanout(t *testing.T) {
	buf := &Buffer{
		Samples: []int32{10, 20, 30},
		Format:  Format{SampleRate: 8000, Channels: 1},
	}

	if got := buf.Frame(1, 1); got != 20 {
		t.Errorf("expected mono sample on right channel, got %d", got)
	}
	if got := buf.Frame(5, 0); got != 0 {
		t.Errorf("expected 0 past the end, got %d", got)
	}
}

func TestScaleToBitDepth(t *testing.T) {
	tests := []struct {
		name     string
		sample   int32
		bitDepth int
		expected int32
	}{
		{"16 bit", 100, 16, 100 << 8},
		{"24 bit", 100, 24, 100},
		{"32 bit", 100 << 8, 32, 100},
		{"8 bit", 1, 8, 1 << 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleToBitDepth(tt.sample, tt.bitDepth); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestClamp24(t *testing.T) {
	if Clamp24(1e9) != Max24Bit {
		t.Error("expected clamp to Max24Bit")
	}
	if Clamp24(-1e9) != Min24Bit {
		t.Error("expected clamp to Min24Bit")
	}
	if Clamp24(12.7) != 12 {
		t.Error("expected truncation inside range")
	}
}
