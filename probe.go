// ABOUTME: The probe subcommand
// ABOUTME: Opens resources through the fetcher and decoders and prints their format
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/buzz-go/internal/fetch"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/buzz-go/pkg/media"
	"github.com/spf13/cobra"
)

func probeCommand(cli *cliContext) *cobra.Command {
	var scan bool

	cmd := &cobra.Command{
		Use:   "probe <source>...",
		Short: "Print codec, format and duration of audio resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := cli.setupLogging(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logs.Close()

			f, err := fetch.New(fetch.Config{CacheDir: cli.cfg.CacheDir})
			if err != nil {
				return err
			}
			open := media.FetchOpener(f)

			var failed int
			for _, src := range args {
				if err := probe(cmd.Context(), cmd.OutOrStdout(), open, src, scan); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", src, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sources failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&scan, "scan", false, "Decode the whole resource when the length is not in the header")

	return cmd
}

func probe(ctx context.Context, w io.Writer, open media.Opener, src string, scan bool) error {
	s, err := open(ctx, src)
	if err != nil {
		return err
	}
	format := s.Format()
	frames := s.Frames()

	if frames < 0 && scan {
		buf, err := decode.ReadAll(s)
		if err != nil {
			return err
		}
		frames = int64(buf.Frames())
	} else {
		s.Close()
	}

	duration := "unknown"
	if frames >= 0 && format.SampleRate > 0 {
		duration = fmt.Sprintf("%.3fs", float64(frames)/float64(format.SampleRate))
	}

	fmt.Fprintf(w, "%s\n  codec:    %s\n  rate:     %d Hz\n  channels: %d\n  depth:    %d bit\n  duration: %s\n",
		src, format.Codec, format.SampleRate, format.Channels, format.BitDepth, duration)
	return nil
}
