package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the effective values",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	source := viper.GetString("config")
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(out, "Checking %s... ", source)

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("validation failed: listenPort %d out of range", cfg.ListenPort)
	}
	fmt.Fprintln(out, "OK")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintf(out, "\n%s", data)
	return nil
}
