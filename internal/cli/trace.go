package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/harness"
	"github.com/roach88/synth/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal  string
	List     bool
	Commands bool // only command steps
}

// RunInfo describes a journaled run.
type RunInfo struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run   RunInfo              `json:"run"`
	Trace []harness.TraceEvent `json:"trace"`
	Stats TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Steps        int `json:"steps"`
	Commands     int `json:"commands"`
	Rejected     int `json:"rejected"`
	Completed    int `json:"completed"`
	Maintenances int `json:"maintenances"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Print the journaled steps of a run",
		Long: `Print the step-by-step trace of a journaled run.

Each step shows its trigger, outcome, the region transitions it caused
and the queue afterwards. Without a run id the most recent run is shown.

Examples:
  synth trace --journal ./synth.db --list
  synth trace --journal ./synth.db
  synth trace --journal ./synth.db 0190f1d2-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (defaults to config)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list journaled runs")
	cmd.Flags().BoolVar(&opts.Commands, "commands", false, "only show command steps")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openJournalForRead(opts.Journal, opts.effectiveConfig().Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.List {
		return listRuns(ctx, j, opts.formatter(cmd))
	}

	run, err := resolveRun(ctx, j, runID)
	if err != nil {
		return err
	}

	steps, err := j.ReadSteps(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}

	result := TraceResult{
		Run:   RunInfo{ID: run.ID, Mode: run.Mode, StartedAt: run.StartedAt},
		Stats: traceStats(steps),
	}
	if opts.Commands {
		steps = commandSteps(steps)
	}
	result.Trace = harness.TraceFromSteps(steps, run.StartedAt)

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:     %s (%s)\n", run.ID, run.Mode)
	fmt.Fprintf(w, "Started: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Steps:   %d (%d commands, %d rejected)\n",
		result.Stats.Steps, result.Stats.Commands, result.Stats.Rejected)
	fmt.Fprintf(w, "Tasks:   %d completed, %d maintenance holds\n",
		result.Stats.Completed, result.Stats.Maintenances)
	fmt.Fprintln(w)
	return harness.WriteTrace(w, result.Trace)
}

// openJournalForRead opens an existing journal. flagPath wins over the
// configured path; one of them is required.
func openJournalForRead(flagPath, configPath string) (*journal.Journal, error) {
	path := flagPath
	if path == "" {
		path = configPath
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no journal: pass --journal or set journal in the config file")
	}
	if path != ":memory:" && !fileExists(path) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}

	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// resolveRun reads runID, or the latest run when runID is empty.
func resolveRun(ctx context.Context, j *journal.Journal, runID string) (journal.Run, error) {
	var (
		run journal.Run
		err error
	)
	if runID == "" {
		run, err = j.LatestRun(ctx)
	} else {
		run, err = j.ReadRun(ctx, runID)
	}
	if errors.Is(err, journal.ErrRunNotFound) {
		if runID == "" {
			return journal.Run{}, NewExitError(ExitCommandError, "journal has no runs")
		}
		return journal.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return journal.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

func listRuns(ctx context.Context, j *journal.Journal, out *OutputFormatter) error {
	runs, err := j.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = RunInfo{ID: r.ID, Mode: r.Mode, StartedAt: r.StartedAt}
	}
	if out.JSON() {
		return out.Success(infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(out.Writer, "No runs journaled.")
		return nil
	}
	for _, r := range infos {
		fmt.Fprintf(out.Writer, "%-36s  %-8s  %s\n", r.ID, r.Mode, humanize.Time(r.StartedAt))
	}
	return nil
}

func traceStats(steps []journal.StepRecord) TraceStats {
	stats := TraceStats{Steps: len(steps)}
	for _, s := range steps {
		if s.TriggerKind == engine.TriggerCommand {
			stats.Commands++
			if s.Outcome == engine.Rejected.String() {
				stats.Rejected++
			}
		}
		for _, t := range s.Transitions {
			if t.Region != engine.RegionProduction || t.From == t.To {
				continue
			}
			switch engine.ProductionState(t.To) {
			case engine.ProductionTaskCompleted:
				stats.Completed++
			case engine.ProductionOnMaintenance:
				stats.Maintenances++
			}
		}
	}
	return stats
}

func commandSteps(steps []journal.StepRecord) []journal.StepRecord {
	var out []journal.StepRecord
	for _, s := range steps {
		if s.TriggerKind == engine.TriggerCommand {
			out = append(out, s)
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
