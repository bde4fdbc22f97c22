package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/synth/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	All     bool // replay every run, not just one
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []journal.ReplayResult `json:"runs"`
	TotalRuns        int                    `json:"total_runs"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Re-execute journaled runs and verify determinism",
		Long: `Re-execute journaled runs on a virtual clock and compare every step.

The journaled commands are dispatched again at their recorded times; the
timers in between fire on their own. Each replayed step must reproduce the
journaled seq and snapshot hash. Without a run id the latest run is replayed.

Exit codes:
  0 - All replayed runs are deterministic
  1 - A run diverged from its journal
  2 - Command error (journal not found, etc.)

Examples:
  synth replay --journal ./synth.db
  synth replay --journal ./synth.db --all
  synth replay --journal ./synth.db 0190f1d2-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runReplay(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (defaults to config)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "replay every journaled run")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	if opts.All && runID != "" {
		return NewExitError(ExitCommandError, "--all and a run id are mutually exclusive")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openJournalForRead(opts.Journal, opts.effectiveConfig().Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	runIDs, err := replayTargets(ctx, j, runID, opts.All)
	if err != nil {
		return err
	}

	result := ReplayResult{
		Runs:             make([]journal.ReplayResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}
	for _, id := range runIDs {
		rr, err := j.Replay(ctx, id, opts.logger())
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Identical {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.AllDeterministic {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_NONDETERMINISTIC",
				Message: "replay diverged from the journal",
			}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, rr := range result.Runs {
			if rr.Identical {
				fmt.Fprintf(w, "✓ %s: %d steps identical\n", rr.RunID, rr.Steps)
				continue
			}
			fmt.Fprintf(w, "✗ %s: diverged at seq %d: %s\n", rr.RunID, rr.DivergedAt, rr.Reason)
		}
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from the journal")
	}
	return nil
}

// replayTargets picks the runs to replay.
func replayTargets(ctx context.Context, j *journal.Journal, runID string, all bool) ([]string, error) {
	if !all {
		run, err := resolveRun(ctx, j, runID)
		if err != nil {
			return nil, err
		}
		return []string{run.ID}, nil
	}

	runs, err := j.ListRuns(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
