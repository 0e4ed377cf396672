// ABOUTME: Entry point for the buzz command line player
// ABOUTME: Builds the cobra command tree and loads configuration before each command
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/buzz-go/internal/config"
	"github.com/Resonate-Protocol/buzz-go/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cliContext is shared by every subcommand
type cliContext struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

func main() {
	if err := rootCommand(&cliContext{v: viper.New()}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand(cli *cliContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "buzz",
		Short:         "Play audio resources through the buzz engine",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cli.configPath, "config", "c", "", "Config file (default: ./buzz.yaml, then ~/.config/buzz/buzz.yaml)")
	flags.String("backend", "", "Audio output backend: oto, malgo, portaudio or null")
	flags.String("cache-dir", "", "Directory for downloaded resources")
	flags.String("log-file", "", "Log file path")
	flags.String("log-level", "", "Log level, or comma separated subsys=level list")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	bindings := map[string]string{
		"backend":      "backend",
		"cache_dir":    "cache-dir",
		"log_file":     "log-file",
		"log_level":    "log-level",
		"metrics_addr": "metrics-addr",
	}
	for key, name := range bindings {
		if err := cli.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	versionCmd := versionCommand()
	rootCmd.AddCommand(
		playCommand(cli),
		probeCommand(cli),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		cfg, err := config.Load(cli.v, cli.configPath)
		if err != nil {
			return err
		}
		cli.cfg = cfg
		return nil
	}

	return rootCmd
}

// setupLogging installs the subsystem loggers. console is nil when the
// TUI owns the terminal.
func (cli *cliContext) setupLogging(console io.Writer) (*logBackend, error) {
	logs, err := newLogBackend(cli.cfg.LogFile, cli.cfg.LogLevel, console)
	if err != nil {
		return nil, err
	}
	logs.install()
	return logs, nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", version.String(), version.Manufacturer)
		},
	}
}
