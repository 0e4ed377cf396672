// ABOUTME: Tests for the audio graph
// ABOUTME: Covers the context clock, gain chains and buffer source mixing
package graph

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/output"
)

func newTestContext(t *testing.T, clock clockwork.Clock) *Context {
	t.Helper()
	ctx, err := NewContext(Config{SampleRate: 1000, Channels: 1, BitDepth: 16, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func constantBuffer(value int32, frames, rate int) *audio.Buffer {
	samples := make([]int32, frames)
	for i := range samples {
		samples[i] = value
	}
	return &audio.Buffer{
		Samples: samples,
		Format:  audio.Format{Codec: "pcm", SampleRate: rate, Channels: 1, BitDepth: 24},
	}
}

func decode16(p []byte) []int16 {
	out := make([]int16, len(p)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[i*2:]))
	}
	return out
}

func TestCurrentTimeStopsWhileSuspended(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx := newTestContext(t, clock)

	clock.Advance(2 * time.Second)
	assert.InDelta(t, 2.0, ctx.CurrentTime(), 1e-9)

	require.NoError(t, ctx.Suspend())
	assert.Equal(t, StateSuspended, ctx.State())
	clock.Advance(5 * time.Second)
	assert.InDelta(t, 2.0, ctx.CurrentTime(), 1e-9)

	require.NoError(t, ctx.Resume())
	clock.Advance(time.Second)
	assert.InDelta(t, 3.0, ctx.CurrentTime(), 1e-9)
}

func TestStartSuspended(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, err := NewContext(Config{Clock: clock, StartSuspended: true})
	require.NoError(t, err)
	defer ctx.Close()

	dev := output.NewNull().(*output.Null)
	require.NoError(t, ctx.Attach(dev))
	assert.True(t, dev.Suspended())

	clock.Advance(time.Second)
	assert.Zero(t, ctx.CurrentTime())

	require.NoError(t, ctx.Resume())
	assert.False(t, dev.Suspended())
}

func TestGainLevel(t *testing.T) {
	ctx := newTestContext(t, clockwork.NewFakeClock())

	group := NewGain(0.5)
	sound := NewGain(0.5)
	sound.Connect(group)
	assert.Zero(t, sound.Level(), "chain not reaching the destination is silent")

	group.Connect(ctx.Destination())
	assert.InDelta(t, 0.25, sound.Level(), 1e-9)

	ctx.Destination().SetValue(0)
	assert.Zero(t, sound.Level())
}

func TestBufferSourceMix(t *testing.T) {
	ctx := newTestContext(t, clockwork.NewFakeClock())
	dev := output.NewNull().(*output.Null)
	require.NoError(t, ctx.Attach(dev))

	gain := NewGain(0.5)
	gain.Connect(ctx.Destination())

	src := ctx.NewBufferSource(constantBuffer(audio.SampleFromInt16(1000), 4, 1000))
	src.Connect(gain)

	ended := 0
	src.OnEnded(func() { ended++ })
	src.Start(0, 0)
	assert.Equal(t, 1, ctx.Voices())

	p, err := dev.Pull(16)
	require.NoError(t, err)
	got := decode16(p)
	assert.Equal(t, []int16{500, 500, 500, 500, 0, 0, 0, 0}, got)
	assert.Equal(t, 1, ended)
	assert.Equal(t, 0, ctx.Voices())
	assert.False(t, src.Playing())
}

func TestBufferSourceRegion(t *testing.T) {
	ctx := newTestContext(t, clockwork.NewFakeClock())
	dev := output.NewNull().(*output.Null)
	require.NoError(t, ctx.Attach(dev))

	gain := NewGain(1)
	gain.Connect(ctx.Destination())

	buf := constantBuffer(0, 10, 1000)
	for i := range buf.Samples {
		buf.Samples[i] = audio.SampleFromInt16(int16(i))
	}

	src := ctx.NewBufferSource(buf)
	src.Connect(gain)
	src.Start(0.002, 0.003)

	p, err := dev.Pull(10)
	require.NoError(t, err)
	assert.Equal(t, []int16{2, 3, 4, 0, 0}, decode16(p))
}

func TestBufferSourceStop(t *testing.T) {
	ctx := newTestContext(t, clockwork.NewFakeClock())

	src := ctx.NewBufferSource(constantBuffer(1, 100, 1000))
	ended := 0
	src.OnEnded(func() { ended++ })

	src.Stop()
	assert.Equal(t, 0, ended, "stopping an unstarted source is silent")

	src = ctx.NewBufferSource(constantBuffer(1, 100, 1000))
	src.OnEnded(func() { ended++ })
	src.Start(0, 0)
	src.Stop()
	src.Stop()
	assert.Equal(t, 1, ended)
	assert.Equal(t, 0, ctx.Voices())

	src.Start(0, 0)
	assert.Equal(t, 0, ctx.Voices(), "sources cannot restart")
}

func TestBufferSourceRate(t *testing.T) {
	ctx := newTestContext(t, clockwork.NewFakeClock())
	dev := output.NewNull().(*output.Null)
	require.NoError(t, ctx.Attach(dev))

	gain := NewGain(1)
	gain.Connect(ctx.Destination())

	src := ctx.NewBufferSource(constantBuffer(audio.SampleFromInt16(100), 8, 1000))
	src.Connect(gain)
	src.SetPlaybackRate(2)
	src.SetPlaybackRate(-1)
	assert.Equal(t, 2.0, src.PlaybackRate())
	src.Start(0, 0)

	p, err := dev.Pull(12)
	require.NoError(t, err)
	assert.Equal(t, []int16{100, 100, 100, 100, 0, 0}, decode16(p))
}

func TestReadPadsPartialFrame(t *testing.T) {
	ctx, err := NewContext(Config{SampleRate: 1000, Channels: 2, BitDepth: 16, Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)
	defer ctx.Close()

	p := []byte{1, 2, 3, 4, 5, 6}
	n, err := ctx.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, p)
}

func TestClose(t *testing.T) {
	ctx := newTestContext(t, clockwork.NewFakeClock())
	src := ctx.NewBufferSource(constantBuffer(1, 10, 1000))
	src.Start(0, 0)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	assert.Equal(t, StateClosed, ctx.State())
	assert.Equal(t, 0, ctx.Voices())

	ctx.Start(src)
	assert.Equal(t, 0, ctx.Voices())
}
