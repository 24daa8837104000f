package cli

import (
	"fmt"

	"github.com/infersetup/infersetup/internal/engine"
	"github.com/infersetup/infersetup/internal/logging"
	"github.com/infersetup/infersetup/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Run the full provisioning pipeline",
	Long: `Checks the host, installs everything vLLM needs, verifies the install and
writes the systemd unit. The first fatal step stops the run; completed steps
are not rolled back.`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().BoolP("yes", "y", false, "Answer yes to the OS release confirmation")
	provisionCmd.Flags().String("record", "", "Write the run record here instead of the configured path")
	provisionCmd.Flags().String("report-bucket", "", "Also upload the run record to this S3 bucket")
	provisionCmd.Flags().String("report-region", "", "Region of the report bucket")
	_ = viper.BindPFlag("yes", provisionCmd.Flags().Lookup("yes"))
	_ = viper.BindPFlag("record", provisionCmd.Flags().Lookup("record"))
	_ = viper.BindPFlag("report-bucket", provisionCmd.Flags().Lookup("report-bucket"))
	_ = viper.BindPFlag("report-region", provisionCmd.Flags().Lookup("report-region"))
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if p := viper.GetString("record"); p != "" {
		cfg.RecordPath = p
	}

	deps, release := newDeps(cfg, cmd)
	defer release()
	if viper.GetBool("yes") {
		deps.Confirm = func(string) bool { return true }
	} else {
		deps.Confirm = promptConfirm(cmd.InOrStdin(), out)
	}

	stateMgr := state.NewManager(cfg.RecordPath)
	eng := engine.NewEngine(cfg, deps)

	// The lock lives next to the record, which a non-root operator cannot
	// create, so it is taken only once the checks have passed.
	locked := false
	eng.BeforeInstall = func() error {
		if err := stateMgr.Lock(); err != nil {
			return err
		}
		locked = true
		return nil
	}
	defer func() {
		if locked {
			releaseLock(stateMgr)
		}
	}()

	record, runErr := eng.RunWithCallback(ctx, func(ev engine.StepEvent) {
		if ev.Status == "started" {
			fmt.Fprintf(out, "%s==> [%d/%d] %s%s\n", colorize(colorCyan), ev.Index, ev.Total, ev.Step, colorize(colorReset))
		}
	})

	// The record is written on failure too so the operator can see how far
	// the run got.
	if err := stateMgr.Write(ctx, record); err != nil {
		logging.Warn("failed to write run record", "error", err)
	}
	if bucket := viper.GetString("report-bucket"); bucket != "" {
		uploadRecord(cmd, bucket, record)
	}

	if runErr != nil {
		return fmt.Errorf("provisioning failed: %w", runErr)
	}

	renderSummary(out, cfg, record)
	return nil
}

// releaseLock removes the run lock. A lock left behind blocks the next run,
// so a failure is reported.
func releaseLock(m *state.Manager) {
	if err := m.Unlock(); err != nil {
		logging.Warn("failed to release run lock", "path", m.Path()+".lock", "error", err)
	}
}
