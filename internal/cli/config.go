package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/synth/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying defaults to --config.

Text output is CUE and can be used as a starting config file.

Examples:
  synth config
  synth config --config ./synth.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.effectiveConfig()
			out := rootOpts.formatter(cmd)
			if out.JSON() {
				return out.Success(cfg)
			}
			_, err := fmt.Fprint(out.Writer, config.Format(cfg))
			return err
		},
	}
}
