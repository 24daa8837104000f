package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "infersetup",
	Short: "Provision a GPU host to serve vLLM",
	Long: `infersetup prepares a single Ubuntu + CUDA host to run a vLLM inference server.

It runs a fixed, ordered pipeline:
  • precondition checks (root, OS release, CUDA toolkit, driver)
  • package installs (build tools, Python, protoc, vLLM)
  • verification of the installed interpreter and package
  • a systemd unit for the server`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run; the
// step in flight is killed and nothing is rolled back.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Pkl file overriding the default configuration")
	rootCmd.PersistentFlags().String("server", "", "Inference server preset ("+strings.Join(ir.ServerNames(), ", ")+")")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable ANSI colors")
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(unitCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(versionCmd)
}

// initEnv lets every flag be set as INFERSETUP_<FLAG>, e.g. INFERSETUP_LOG_LEVEL.
func initEnv() {
	viper.SetEnvPrefix("INFERSETUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	_, noColorEnv := os.LookupEnv("NO_COLOR")
	noColor = viper.GetBool("no-color") || noColorEnv
	logging.Setup(viper.GetString("log-level"), cmd.OutOrStdout(), !noColor)
	return nil
}
