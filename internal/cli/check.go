package cli

import (
	"fmt"

	"github.com/infersetup/infersetup/internal/engine"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the precondition checks without changing the host",
	Long: `Runs the privilege, OS, CUDA and container runtime checks and reports what
provision would decide. Nothing is installed, the shell profile is not
touched and no confirmation is asked.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, release := newDeps(cfg, cmd)
	defer release()

	eng := engine.NewEngine(cfg, deps)
	results := eng.Inspect(ctx)

	fmt.Fprintf(out, "Checks for %s %s / CUDA %d:\n", cfg.ExpectedOSName, cfg.ExpectedOSVersion, cfg.CUDAMajor)
	renderResults(out, results)

	failed := 0
	for _, res := range results {
		if res.Outcome == ir.FatalAbort {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}

	fmt.Fprintln(out, "\nHost is ready to provision.")
	return nil
}
