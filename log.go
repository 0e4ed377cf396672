// ABOUTME: Logging backend for the buzz CLI
// ABOUTME: Routes subsystem loggers to a rotating log file and, without the TUI, stderr
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/buzz-go/internal/fetch"
	"github.com/Resonate-Protocol/buzz-go/pkg/audio/output"
	"github.com/Resonate-Protocol/buzz-go/pkg/buzz"
	"github.com/Resonate-Protocol/buzz-go/pkg/media"
	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

const maxLogFiles = 8

var mainLog = slog.Disabled

type logBackend struct {
	logRotator      *rotator.Rotator
	console         io.Writer
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level

	loggersMtx sync.Mutex
	loggers    map[string]slog.Logger
}

// newLogBackend parses debugLevel as "level" or a comma separated list of
// "subsys=level" entries. console may be nil.
func newLogBackend(logFile, debugLevel string, console io.Writer) (*logBackend, error) {
	var logRotator *rotator.Rotator
	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0700); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		var err error
		logRotator, err = rotator.New(logFile, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
	}

	b := &logBackend{
		logRotator:      logRotator,
		console:         console,
		defaultLogLevel: slog.LevelInfo,
		logLevels:       make(map[string]slog.Level),
		loggers:         make(map[string]slog.Logger),
	}
	b.bknd = slog.NewBackend(b)

	for _, v := range strings.Split(debugLevel, ",") {
		if v == "" {
			continue
		}
		fields := strings.Split(v, "=")
		switch len(fields) {
		case 1:
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return nil, fmt.Errorf("unknown log level %q", fields[0])
			}
			b.defaultLogLevel = level
		case 2:
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return nil, fmt.Errorf("unknown log level %q", fields[1])
			}
			b.logLevels[fields[0]] = level
		default:
			return nil, fmt.Errorf("unable to parse %q as subsys=level "+
				"debuglevel string", v)
		}
	}

	return b, nil
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.console != nil {
		bknd.console.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}
	return len(b), nil
}

func (bknd *logBackend) logger(subsys string) slog.Logger {
	bknd.loggersMtx.Lock()
	defer bknd.loggersMtx.Unlock()

	if l, ok := bknd.loggers[subsys]; ok {
		return l
	}

	l := bknd.bknd.Logger(subsys)
	bknd.loggers[subsys] = l
	if level, ok := bknd.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(bknd.defaultLogLevel)
	}

	return l
}

// install hands every package its subsystem logger
func (bknd *logBackend) install() {
	mainLog = bknd.logger("BUZZ")
	buzz.UseLogger(bknd.logger("ENGN"))
	media.UseLogger(bknd.logger("MDIA"))
	output.UseLogger(bknd.logger("AOUT"))
	fetch.UseLogger(bknd.logger("FTCH"))
}

func (bknd *logBackend) Close() error {
	if bknd.logRotator == nil {
		return nil
	}
	return bknd.logRotator.Close()
}
