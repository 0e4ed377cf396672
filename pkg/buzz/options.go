// ABOUTME: Group options and sprite regions
// ABOUTME: Defaults are applied by normalize when a group is created
package buzz

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/buzz-go/pkg/audio/decode"
)

const (
	// MaxRate is the fastest accepted playback rate
	MaxRate = 5.0
)

// Region is a named sub-range of a resource in seconds. An End of 0 means
// the end of the resource.
type Region struct {
	Start float64
	End   float64
}

// Options configures a group of sounds
type Options struct {
	// Sources in order of preference; the first with a known codec is used
	Sources []string

	// Volume of new sounds, 0 to 1 (default: 1 when nil)
	Volume *float64

	// Rate of new sounds, above 0 up to MaxRate (default: 1)
	Rate float64

	Muted    bool
	Loop     bool
	Preload  bool
	Autoplay bool

	// Stream plays through pooled streaming nodes instead of decoded buffers
	Stream bool

	// Regions are named sprites
	Regions map[string]Region

	OnLoad    Callback
	OnError   Callback
	OnPlay    Callback
	OnPlayEnd Callback
	OnStop    Callback
	OnPause   Callback
	OnMute    Callback
	OnVolume  Callback
	OnRate    Callback
	OnSeek    Callback
	OnDestroy Callback
}

// normalize applies defaults and validates the options
func (o Options) normalize() (Options, error) {
	if len(o.Sources) == 0 {
		return o, fmt.Errorf("%w: no sources", ErrInvalidArgument)
	}
	if o.Volume == nil {
		o.Volume = Float64(1)
	}
	if v := *o.Volume; !validVolume(v) {
		return o, fmt.Errorf("%w: volume %v", ErrInvalidArgument, v)
	}
	if o.Rate == 0 {
		o.Rate = 1
	}
	if !validRate(o.Rate) {
		return o, fmt.Errorf("%w: rate %v", ErrInvalidArgument, o.Rate)
	}
	for name, r := range o.Regions {
		if r.Start < 0 || (r.End != 0 && r.End <= r.Start) {
			return o, fmt.Errorf("%w: region %q [%v, %v]", ErrInvalidArgument, name, r.Start, r.End)
		}
	}
	return o, nil
}

// source picks the first source with a codec we can decode
func (o Options) source() string {
	for _, src := range o.Sources {
		if decode.CodecFromName(src) != "" {
			return src
		}
	}
	return o.Sources[0]
}

// callbacks maps event types to the configured callbacks
func (o Options) callbacks() map[EventType]Callback {
	return map[EventType]Callback{
		EventLoad:    o.OnLoad,
		EventError:   o.OnError,
		EventPlay:    o.OnPlay,
		EventPlayEnd: o.OnPlayEnd,
		EventStop:    o.OnStop,
		EventPause:   o.OnPause,
		EventMute:    o.OnMute,
		EventVolume:  o.OnVolume,
		EventRate:    o.OnRate,
		EventSeek:    o.OnSeek,
		EventDestroy: o.OnDestroy,
	}
}

// Float64 returns a pointer to v for optional fields such as Options.Volume
func Float64(v float64) *float64 { return &v }

func validRate(r float64) bool {
	return r > 0 && r <= MaxRate
}

func validVolume(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}
