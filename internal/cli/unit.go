package cli

import (
	"fmt"

	"github.com/infersetup/infersetup/internal/engine"
	"github.com/spf13/cobra"
)

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Print the systemd unit provision would write",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), engine.RenderService(engine.BuildService(cfg)))
		return nil
	},
}
