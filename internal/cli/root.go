package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Set by the root command before any subcommand runs.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the synth CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Nucleotide synthesizer scheduler",
		Long: `Schedule nucleotide sequences on a single synthesizer.

Tasks wait in a priority queue, are synthesized one element per tick,
and the machine goes into maintenance after a run of completed tasks.
An estimator keeps a running forecast of when the queue will drain.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a CUE config file")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// setup validates global flags, loads the config file and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	level := logging.ParseLevel(cfg.LogLevel)
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = logging.NewLoggerWithWriter(level, cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}

// logger returns the configured logger, or a discarding one when a
// subcommand is executed without its root.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// effectiveConfig returns the loaded configuration, or the defaults when
// a subcommand is executed without its root.
func (o *RootOptions) effectiveConfig() config.Config {
	if o.Config == (config.Config{}) {
		return config.Default()
	}
	return o.Config
}

// formatter builds an OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
