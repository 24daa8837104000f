package cli

import (
	"fmt"
	"os"

	"github.com/infersetup/infersetup/internal/engine"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	planOutFile string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the ordered provisioning steps",
	Long: `Lists every step provision runs, in order, without touching the host.

Steps are one of:
  • check    precondition, may abort the run
  • install  package or file installation
  • verify   post-install verification
  • emit     service definition output`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write plan to file as YAML")
}

// planDocument is the YAML form of a plan.
type planDocument struct {
	Package string           `yaml:"package"`
	Model   string           `yaml:"model"`
	Unit    string           `yaml:"unit"`
	Steps   []ir.PlannedStep `yaml:"steps"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Planning never calls the host, so no dependencies are wired.
	eng := engine.NewEngine(cfg, engine.Deps{})
	steps := eng.Plan()

	fmt.Fprintf(out, "%d steps will run:\n\n", len(steps))
	for _, step := range steps {
		fmt.Fprintf(out, "  %s%2d. %-26s%s [%s] %s\n",
			colorize(colorCyan), step.Index, step.Name, colorize(colorReset), step.Kind, step.Description)
	}

	if planOutFile != "" {
		doc := planDocument{
			Package: cfg.Package,
			Model:   cfg.ModelID,
			Unit:    cfg.UnitPath,
			Steps:   steps,
		}
		data, err := yaml.Marshal(&doc)
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write plan: %w", err)
		}
		fmt.Fprintf(out, "\nPlan saved to %s\n", planOutFile)
	}

	return nil
}
