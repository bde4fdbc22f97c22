package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/journal"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Journal string
	Tasks   int
	Seed    uint64
	For     time.Duration
	Max     time.Duration
	Trace   bool

	// Start is the virtual start time. Zero means now, truncated to the second.
	Start time.Time

	// RunIDs allows overriding the journal run id generator (for testing).
	RunIDs journal.RunIDGenerator
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return newSimulateCommand(&SimulateOptions{RootOptions: rootOpts})
}

func newSimulateCommand(opts *SimulateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [script]",
		Short: "Run the synthesizer on virtual time",
		Long: `Run the synthesizer on a virtual clock and print the final state.

Random tasks from --tasks are created first, then the optional script is
applied. A script holds one command per line (same syntax as "synth run")
plus "advance <duration>" lines that move virtual time forward.

Without --for the simulation runs until the machine is idle, bounded
by --max.

Exit codes:
  0 - Simulation finished
  1 - The machine did not go idle within --max
  2 - Command error (bad script, bad flags, etc.)

Examples:
  synth simulate --tasks 10 --seed 42
  synth simulate --for 30s ./scripts/edit-while-busy.txt
  synth simulate --tasks 3 --trace --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			script := ""
			if len(args) == 1 {
				script = args[0]
			}
			return runSimulate(opts, script, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (overrides config)")
	cmd.Flags().IntVar(&opts.Tasks, "tasks", 0, "create N random tasks at the start")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for random tasks (0 = random)")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "virtual time to run after the script (0 = until idle)")
	cmd.Flags().DurationVar(&opts.Max, "max", 24*time.Hour, "upper bound on virtual time when running until idle")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print every step")

	return cmd
}

func runSimulate(opts *SimulateOptions, scriptPath string, cmd *cobra.Command) error {
	if opts.Tasks < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--tasks must not be negative, got %d", opts.Tasks))
	}
	if opts.For < 0 || opts.Max <= 0 {
		return NewExitError(ExitCommandError, "--for must not be negative and --max must be positive")
	}

	var script []ScriptLine
	if scriptPath != "" {
		f, err := os.Open(scriptPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open script", err)
		}
		script, err = ParseScript(f)
		f.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid script %s", scriptPath), err)
		}
	}

	logger := opts.logger()
	cfg := opts.effectiveConfig()
	timing := cfg.Timing()
	out := opts.formatter(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	start := opts.Start
	if start.IsZero() {
		start = time.Now().UTC().Truncate(time.Second)
	}
	clock := engine.NewVirtualClock(start)

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = cfg.Journal
	}
	sess, err := openSession(ctx, journalPath, journal.ModeSimulate, timing, start, opts.RunIDs, logger)
	if err != nil {
		return err
	}

	steps := 0
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(func(engine.Step) { steps++ }),
	}
	if opts.Trace {
		engineOpts = append(engineOpts, engine.WithObserver(stepPrinter(out.Writer, opts.Format)))
	}
	eng := engine.New(timing, clock, append(engineOpts, sess.options()...)...)

	simErr := simulate(opts, eng, script, out)
	if err := sess.Close(); err != nil && simErr == nil {
		simErr = err
	}

	summary, snap := newSummary(sess.RunID(), steps, eng)
	if err := writeSummary(out, summary, snap); err != nil {
		return err
	}
	if simErr == nil {
		fmt.Fprintf(out.GetErrWriter(), "simulated %s of virtual time\n", snap.At.Sub(start))
	}
	return simErr
}

// simulate applies the demo tasks and script, then runs out the horizon.
func simulate(opts *SimulateOptions, eng *engine.Engine, script []ScriptLine, out *OutputFormatter) error {
	if opts.Tasks > 0 {
		gen := newGenerator(opts.Seed)
		for range opts.Tasks {
			p := gen.Next()
			if _, err := eng.Dispatch(engine.CreateTask(p.Priority, p.Sequence)); err != nil {
				return WrapExitError(ExitFailure, "failed to create task", err)
			}
		}
	}

	for _, line := range script {
		if line.Command == nil {
			if err := eng.Advance(line.Advance); err != nil {
				return err
			}
			continue
		}

		outcome, err := eng.Dispatch(*line.Command)
		switch {
		case err != nil:
			// The engine left its state unchanged; keep going like the live loop.
			fmt.Fprintf(out.GetErrWriter(), "line %d: %s failed: %v\n", line.Line, line.Command, err)
		case outcome == engine.Rejected:
			out.VerboseLog("line %d: %s rejected", line.Line, line.Command)
		}
	}

	if opts.For > 0 {
		return eng.Advance(opts.For)
	}
	return runUntilIdle(eng, opts.Max)
}

// runUntilIdle advances timer by timer until production is idle.
// Tasks parked in editing or deletion confirmation never start, so idle is
// reachable even when they remain queued.
func runUntilIdle(eng *engine.Engine, limit time.Duration) error {
	start := eng.Snapshot().At
	deadline := start.Add(limit)

	for eng.Snapshot().Production != engine.ProductionIdle {
		due, ok := eng.NextTimer()
		if !ok || due.After(deadline) {
			return NewExitError(ExitFailure,
				fmt.Sprintf("machine still %s after %s of virtual time", eng.Snapshot().Production, limit))
		}
		if err := eng.Advance(due.Sub(eng.Snapshot().At)); err != nil {
			return err
		}
	}
	return nil
}
