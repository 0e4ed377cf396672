// ABOUTME: Openers turn a source string into a decoded audio stream
// ABOUTME: The default opener fetches files and HTTP resources and picks a decoder
package media

import (
	"context"

	"github.com/Resonate-Protocol/buzz-go/internal/fetch"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/decode"
)

// Opener opens src for decoding
type Opener func(ctx context.Context, src string) (decode.Stream, error)

// FetchOpener opens sources through a fetcher
func FetchOpener(f *fetch.Fetcher) Opener {
	return func(ctx context.Context, src string) (decode.Stream, error) {
		rc, err := f.Open(ctx, src)
		if err != nil {
			return nil, err
		}
		return decode.Open(src, rc)
	}
}
