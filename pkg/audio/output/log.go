// ABOUTME: Package logger for audio output devices
// ABOUTME: Disabled by default; set with UseLogger
package output

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger.
func UseLogger(v slog.Logger) {
	log = v
}
