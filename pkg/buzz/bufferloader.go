// ABOUTME: Decoded buffer loader with an in-memory cache
// ABOUTME: Fetches, decodes and resamples whole files for buffer playback
package buzz

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Resonate-Protocol/buzz-go/internal/fetch"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/resample"
)

// maxParallelLoads bounds concurrent fetch+decode work in one batch
const maxParallelLoads = 4

// DownloadResult is the outcome of loading one URL. Buffer is set only
// when Err is nil.
type DownloadResult struct {
	URL    string
	Buffer *audio.Buffer
	Err    error
}

// BufferCache loads decoded buffers. Failures are reported per result so a
// batch can partially succeed.
type BufferCache interface {
	Load(ctx context.Context, urls []string, useCache bool) []DownloadResult
	Unload(urls ...string)
}

// LoadCounters reports buffer loader activity
type LoadCounters struct {
	Loads    uint64
	Failures uint64
	Hits     uint64
}

// BufferLoader is the default BufferCache
type BufferLoader struct {
	fetcher    *fetch.Fetcher
	sampleRate int
	buffers    *cache.Cache
	flight     singleflight.Group

	loads    atomic.Uint64
	failures atomic.Uint64
	hits     atomic.Uint64
}

// NewBufferLoader creates a loader that resamples to sampleRate
func NewBufferLoader(fetcher *fetch.Fetcher, sampleRate int) *BufferLoader {
	return &BufferLoader{
		fetcher:    fetcher,
		sampleRate: sampleRate,
		buffers:    cache.New(cache.NoExpiration, 0),
	}
}

// Load fetches and decodes urls concurrently. With useCache, decoded
// buffers are served from and stored in the cache.
func (b *BufferLoader) Load(ctx context.Context, urls []string, useCache bool) []DownloadResult {
	results := make([]DownloadResult, len(urls))

	var g errgroup.Group
	g.SetLimit(maxParallelLoads)
	for i, url := range urls {
		g.Go(func() error {
			results[i] = b.loadOne(ctx, url, useCache)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *BufferLoader) loadOne(ctx context.Context, url string, useCache bool) DownloadResult {
	if useCache {
		if v, ok := b.buffers.Get(url); ok {
			b.hits.Add(1)
			return DownloadResult{URL: url, Buffer: v.(*audio.Buffer)}
		}
	}

	// The decode is shared by every caller waiting on url, so it must not
	// die with the first caller's context. Each caller still stops waiting
	// when its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := b.flight.DoChan(url, func() (any, error) {
		b.loads.Add(1)
		return b.decode(flightCtx, url)
	})

	var (
		v      any
		err    error
		shared bool
	)
	select {
	case r := <-ch:
		v, err, shared = r.Val, r.Err, r.Shared
	case <-ctx.Done():
		return DownloadResult{URL: url, Err: fmt.Errorf("%w: %s: %w", ErrLoadCancelled, url, ctx.Err())}
	}
	if err != nil {
		if !shared {
			b.failures.Add(1)
		}
		log.Warnf("Buffer load of %s failed: %v", url, err)
		return DownloadResult{URL: url, Err: fmt.Errorf("%w: %s: %w", ErrLoadFailure, url, err)}
	}

	buf := v.(*audio.Buffer)
	if useCache {
		b.buffers.Set(url, buf, cache.NoExpiration)
	}
	return DownloadResult{URL: url, Buffer: buf}
}

func (b *BufferLoader) decode(ctx context.Context, url string) (*audio.Buffer, error) {
	rc, err := b.fetcher.Open(ctx, url)
	if err != nil {
		return nil, err
	}

	stream, err := decode.Open(url, rc)
	if err != nil {
		return nil, err
	}

	buf, err := decode.ReadAll(stream)
	if err != nil {
		return nil, err
	}

	if b.sampleRate > 0 && buf.Format.SampleRate != b.sampleRate {
		log.Debugf("Resampling %s from %d Hz to %d Hz", url, buf.Format.SampleRate, b.sampleRate)
		buf = resample.Buffer(buf, b.sampleRate)
	}

	log.Debugf("Decoded %s: %.2fs, %d ch", url, buf.Duration(), buf.Format.Channels)
	return buf, nil
}

// Unload drops cached buffers for urls, or every cached buffer when none are given
func (b *BufferLoader) Unload(urls ...string) {
	if len(urls) == 0 {
		b.buffers.Flush()
		return
	}
	for _, url := range urls {
		b.buffers.Delete(url)
	}
}

// Cached reports whether url has a cached buffer
func (b *BufferLoader) Cached(url string) bool {
	_, ok := b.buffers.Get(url)
	return ok
}

// Counters returns load activity totals
func (b *BufferLoader) Counters() LoadCounters {
	return LoadCounters{
		Loads:    b.loads.Load(),
		Failures: b.failures.Load(),
		Hits:     b.hits.Load(),
	}
}
