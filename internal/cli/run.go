package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/generator"
	"github.com/roach88/synth/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal  string
	Demo     int
	Seed     uint64
	Duration time.Duration

	// RunIDs allows overriding the journal run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs journal.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the synthesizer on the wall clock",
		Long: `Start the synthesizer in live mode.

Commands are read from stdin, one per line:

  create <priority> <sequence>
  update <id> <priority> <sequence>
  edit | cancel-edit | delete | cancel-delete | destroy <id>

Priorities are 1-3 or low/average/critical. Every step is printed as it
happens. With --journal each step is also recorded to a SQLite journal
for later trace and replay.

Example:
  synth run
  synth run --demo 5 --duration 30s
  synth run --journal ./synth.db < commands.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (overrides config)")
	cmd.Flags().IntVar(&opts.Demo, "demo", 0, "enqueue N random tasks on start")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed for --demo tasks (0 = random)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 = until interrupted)")

	return cmd
}

func runLive(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Demo < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--demo must not be negative, got %d", opts.Demo))
	}

	logger := opts.logger()
	cfg := opts.effectiveConfig()
	timing := cfg.Timing()
	out := opts.formatter(cmd)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = cfg.Journal
	}
	sess, err := openSession(ctx, journalPath, journal.ModeLive, timing, time.Now(), opts.RunIDs, logger)
	if err != nil {
		return err
	}

	steps := 0
	engineOpts := append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(func(engine.Step) { steps++ }),
		engine.WithObserver(stepPrinter(out.Writer, opts.Format)),
	}, sess.options()...)
	eng := engine.New(timing, engine.WallClock{}, engineOpts...)

	if opts.Demo > 0 {
		gen := newGenerator(opts.Seed)
		for range opts.Demo {
			p := gen.Next()
			eng.Enqueue(engine.CreateTask(p.Priority, p.Sequence))
		}
	}

	go readCommands(ctx, cmd.InOrStdin(), eng, logger)

	out.VerboseLog("Engine started. Reading commands from stdin; press Ctrl-C to stop.")

	runErr := eng.Run(ctx)
	closeErr := sess.Close()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", runErr)
	}
	if closeErr != nil {
		return closeErr
	}

	logger.Info("engine stopped gracefully", "steps", steps)
	summary, snap := newSummary(sess.RunID(), steps, eng)
	return writeSummary(out, summary, snap)
}

// readCommands feeds stdin lines to the engine until EOF or ctx is done.
// Unparseable lines are logged and skipped.
func readCommands(ctx context.Context, r io.Reader, eng *engine.Engine, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := ParseCommandLine(line)
		if err != nil {
			logger.Warn("ignoring input line", "line", line, "error", err)
			continue
		}
		if !eng.Enqueue(cmd) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		logger.Warn("stdin read failed", "error", err)
	}
}

// newGenerator returns a seeded generator, or a randomly seeded one for 0.
func newGenerator(seed uint64) *generator.Generator {
	if seed == 0 {
		return generator.New()
	}
	return generator.NewSeeded(seed)
}
