// Command synth schedules nucleotide synthesis tasks on a single machine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/synth/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
