// ABOUTME: Linear interpolation sample rate conversion for decoded buffers
// ABOUTME: Used to bring decoded files to the audio graph sample rate before playback
package resample

import (
	"math"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
)

// Frames returns how many frames converting inFrames from inRate to outRate yields
func Frames(inFrames, inRate, outRate int) int {
	if inFrames <= 0 || inRate <= 0 || outRate <= 0 {
		return 0
	}
	return int(math.Round(float64(inFrames) * float64(outRate) / float64(inRate)))
}

// Into fills dst with interleaved frames read from src at ratio input frames
// per output frame. Positions past the last input frame hold the last frame.
// Returns the number of samples written.
func Into(dst, src []int32, channels int, ratio float64) int {
	if channels <= 0 || len(src) < channels {
		return 0
	}

	inFrames := len(src) / channels
	outFrames := len(dst) / channels
	last := inFrames - 1

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			copy(dst[i*channels:(i+1)*channels], src[last*channels:(last+1)*channels])
			continue
		}

		frac := pos - float64(idx)
		a := src[idx*channels : (idx+1)*channels]
		b := src[(idx+1)*channels : (idx+2)*channels]
		for ch := 0; ch < channels; ch++ {
			dst[i*channels+ch] = int32(float64(a[ch])*(1-frac) + float64(b[ch])*frac)
		}
	}

	return outFrames * channels
}

// Buffer converts a whole decoded buffer to the target sample rate.
// Buffers already at the target rate are returned unchanged.
func Buffer(buf *audio.Buffer, targetRate int) *audio.Buffer {
	if buf == nil || targetRate <= 0 || buf.Format.SampleRate == targetRate ||
		buf.Format.SampleRate == 0 || buf.Format.Channels == 0 {
		return buf
	}

	channels := buf.Format.Channels
	out := make([]int32, Frames(buf.Frames(), buf.Format.SampleRate, targetRate)*channels)
	n := Into(out, buf.Samples, channels, float64(buf.Format.SampleRate)/float64(targetRate))

	format := buf.Format
	format.SampleRate = targetRate
	return &audio.Buffer{Samples: out[:n], Format: format}
}
