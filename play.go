// ABOUTME: The play subcommand
// ABOUTME: Plays one resource through the engine with an optional TUI and metrics endpoint
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/buzz-go/internal/metrics"
	"github.com/Resonate-Protocol/buzz-go/internal/ui"
	"github.com/Resonate-Protocol/buzz-go/pkg/buzz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const cliRegion = "cli"

type playOptions struct {
	stream bool
	loop   bool
	region string
	volume float64
	rate   float64
	noTUI  bool
}

func playCommand(cli *cliContext) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play <source> [alternate...]",
		Short: "Play an audio file or URL",
		Long: "Play an audio file or URL. Extra arguments are alternate encodings of the\n" +
			"same resource, tried in order until one has a supported codec.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), cli, args, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.stream, "stream", false, "Stream through pooled nodes instead of decoding up front")
	f.BoolVar(&opts.loop, "loop", false, "Loop playback")
	f.StringVar(&opts.region, "region", "", "Play only START:END seconds (END may be empty)")
	f.Float64Var(&opts.volume, "volume", 1, "Sound volume, 0 to 1")
	f.Float64Var(&opts.rate, "rate", 1, "Playback rate")
	f.BoolVar(&opts.noTUI, "no-tui", false, "Disable the TUI and log to stderr")

	return cmd
}

// parseRegion parses START:END in seconds. An empty END plays to the end
// of the resource.
func parseRegion(s string) (buzz.Region, error) {
	startStr, endStr, ok := strings.Cut(s, ":")
	if !ok {
		return buzz.Region{}, fmt.Errorf("region %q is not START:END", s)
	}

	start, err := strconv.ParseFloat(strings.TrimSpace(startStr), 64)
	if err != nil || start < 0 {
		return buzz.Region{}, fmt.Errorf("invalid region start %q", startStr)
	}

	var end float64
	if strings.TrimSpace(endStr) != "" {
		end, err = strconv.ParseFloat(strings.TrimSpace(endStr), 64)
		if err != nil || end <= start {
			return buzz.Region{}, fmt.Errorf("invalid region end %q", endStr)
		}
	}

	return buzz.Region{Start: start, End: end}, nil
}

func runPlay(ctx context.Context, cli *cliContext, sources []string, opts playOptions) error {
	if opts.volume < 0 || opts.volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %v", opts.volume)
	}
	if opts.rate <= 0 || opts.rate > buzz.MaxRate {
		return fmt.Errorf("rate must be above 0 and at most %v, got %v", buzz.MaxRate, opts.rate)
	}

	groupOpts := buzz.Options{
		Sources: sources,
		Volume:  buzz.Float64(opts.volume),
		Rate:    opts.rate,
		Loop:    opts.loop,
		Stream:  opts.stream,
	}
	region := ""
	if opts.region != "" {
		r, err := parseRegion(opts.region)
		if err != nil {
			return err
		}
		groupOpts.Regions = map[string]buzz.Region{cliRegion: r}
		region = cliRegion
	}

	useTUI := !opts.noTUI
	var console io.Writer
	if !useTUI {
		console = os.Stderr
	}
	logs, err := cli.setupLogging(console)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := buzz.New(cli.cfg.Engine())
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer func() {
		if err := engine.Terminate(); err != nil {
			mainLog.Warnf("Engine shutdown: %v", err)
		}
	}()

	if cli.cfg.MetricsAddr != "" {
		srv, err := serveMetrics(cli.cfg.MetricsAddr, engine)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	group, err := engine.NewBuzz(groupOpts)
	if err != nil {
		return fmt.Errorf("failed to create sound group: %w", err)
	}
	mainLog.Infof("Playing %s (stream=%v)", group.URL(), group.Stream())

	var controls *ui.Controls
	p := newPlayer(engine, group, region)

	if useTUI {
		controls = ui.NewControls()
		prog, err := ui.Run(controls)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := prog.Run(); err != nil {
				mainLog.Errorf("TUI: %v", err)
			}
			select {
			case controls.Quit <- ui.QuitMsg{}:
			default:
			}
		}()
		defer func() {
			prog.Quit()
			<-done
		}()
		p.status = func(msg ui.StatusMsg) { prog.Send(msg) }
	}

	p.subscribe()
	if err := p.play(); err != nil {
		return err
	}
	p.status(p.initialStatus())

	statsCtx, cancelStats := context.WithCancel(ctx)
	defer cancelStats()
	go p.statsLoop(statsCtx)

	if controls == nil {
		select {
		case <-ctx.Done():
			mainLog.Infof("Shutdown signal received")
		case <-p.finished:
		}
		return p.err()
	}

	for {
		select {
		case <-ctx.Done():
			mainLog.Infof("Shutdown signal received")
			return nil
		case <-controls.Quit:
			mainLog.Infof("Received quit from TUI")
			return nil
		case cmd := <-controls.Commands:
			if err := p.apply(cmd); err != nil {
				mainLog.Warnf("Command %d: %v", cmd.Kind, err)
				p.status(ui.StatusMsg{Err: err.Error()})
			}
		}
	}
}

// serveMetrics exposes pool and loader metrics over HTTP
func serveMetrics(addr string, engine *buzz.Engine) (*http.Server, error) {
	registry := prometheus.NewRegistry()

	var counters metrics.CounterSource
	if c, ok := engine.Buffers().(metrics.CounterSource); ok {
		counters = c
	}
	m, err := metrics.NewEngineMetrics(registry, engine.Pool(), counters)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.Errorf("Metrics server: %v", err)
		}
	}()
	mainLog.Infof("Serving metrics on %s/metrics", addr)

	return srv, nil
}

// player drives one sound of a group from user commands
type player struct {
	engine *buzz.Engine
	group  *buzz.Buzz
	region string
	status func(ui.StatusMsg)

	mu       sync.Mutex
	sound    *buzz.Sound
	lastErr  error
	finished chan struct{}
	once     sync.Once
}

func newPlayer(engine *buzz.Engine, group *buzz.Buzz, region string) *player {
	return &player{
		engine:   engine,
		group:    group,
		region:   region,
		status:   func(ui.StatusMsg) {},
		finished: make(chan struct{}),
	}
}

func (p *player) current() *buzz.Sound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sound
}

func (p *player) finish(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		close(p.finished)
	})
}

func (p *player) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// play resumes the current sound or starts a new one
func (p *player) play() error {
	if s := p.current(); s != nil && s.State() != buzz.StateDestroyed {
		if p.region != "" {
			return s.PlayRegion(p.region)
		}
		return s.Play()
	}

	var (
		s   *buzz.Sound
		err error
	)
	if p.region != "" {
		s, err = p.group.PlayRegion(p.region)
	} else {
		s, err = p.group.Play()
	}
	if err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	p.mu.Lock()
	p.sound = s
	p.mu.Unlock()
	return nil
}

func (p *player) apply(cmd ui.Command) error {
	s := p.current()

	switch cmd.Kind {
	case ui.CommandTogglePlay:
		if s != nil && s.State() == buzz.StatePlaying {
			return s.Pause()
		}
		return p.play()
	case ui.CommandStop:
		if s != nil {
			return s.Stop()
		}
	case ui.CommandSeek:
		if s != nil {
			return s.Seek(cmd.Value)
		}
	case ui.CommandRate:
		p.group.SetRate(cmd.Value)
	case ui.CommandVolume:
		p.group.SetVolume(cmd.Value)
	case ui.CommandMute:
		p.group.Mute(cmd.Value != 0)
	case ui.CommandLoop:
		p.group.SetLoop(cmd.Value != 0)
	}
	return nil
}

func (p *player) subscribe() {
	for _, t := range []buzz.EventType{
		buzz.EventLoad, buzz.EventPlay, buzz.EventPlayStart, buzz.EventStop,
		buzz.EventPause, buzz.EventSeek, buzz.EventRate, buzz.EventVolume,
		buzz.EventMute,
	} {
		p.group.On(t, func(ev buzz.Event) {
			mainLog.Debugf("Sound %d: %s", ev.SoundID, ev.Type)
			p.status(ui.StatusMsg{Event: string(ev.Type)})
		})
	}

	p.group.On(buzz.EventPlayEnd, func(ev buzz.Event) {
		mainLog.Debugf("Sound %d: %s", ev.SoundID, ev.Type)
		p.status(ui.StatusMsg{Event: string(ev.Type)})
		if s := p.current(); s == nil || !s.Loop() {
			p.finish(nil)
		}
	})
	p.group.On(buzz.EventError, func(ev buzz.Event) {
		mainLog.Errorf("Sound %d: %v", ev.SoundID, ev.Err)
		msg := "load failed"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		p.status(ui.StatusMsg{Event: string(ev.Type), Err: msg})
		p.finish(ev.Err)
	})

	for _, t := range []buzz.EventType{buzz.EventSuspend, buzz.EventResume, buzz.EventDone} {
		p.engine.On(t, func(ev buzz.Event) {
			mainLog.Infof("Engine %s", ev.Type)
			p.status(ui.StatusMsg{EngineState: p.engine.State().String()})
		})
	}
}

func (p *player) initialStatus() ui.StatusMsg {
	msg := p.snapshot()
	msg.Resource = p.group.URL()
	msg.Stream = p.group.Stream()
	return msg
}

// snapshot reads sound, engine and pool state for the TUI
func (p *player) snapshot() ui.StatusMsg {
	msg := ui.StatusMsg{
		EngineState: p.engine.State().String(),
	}

	if s := p.current(); s != nil {
		vol := int(math.Round(s.Volume() * 100))
		muted := s.Muted()
		loop := s.Loop()
		msg.State = s.State().String()
		msg.Position = s.Position()
		msg.Duration = s.Duration()
		msg.Rate = s.Rate()
		msg.Volume = &vol
		msg.Muted = &muted
		msg.Loop = &loop
	}

	if p.group.Stream() {
		handles := 0
		for _, st := range p.engine.Pool().Stats() {
			if st.Resource == p.group.URL() {
				handles = st.Total
				msg.Bound = st.Bound
			}
		}
		msg.Handles = &handles
	}

	return msg
}

func (p *player) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.status(p.snapshot())
		}
	}
}
