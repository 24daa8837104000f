package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configTemplate = `// infersetup configuration
//
// Every property is optional. Anything left out keeps its built-in default;
// run 'infersetup validate -c infersetup.pkl' to see the effective values.

// Target host
// expectedOsName = "Ubuntu"
// expectedOsVersion = "24.04"
// cudaMajor = 12
// cudaHome = "/usr/local/cuda"
// shellProfile = "/root/.bashrc"

// Toolchain
// pythonVersion = "3.12"
// protocVersion = "29.3"
// protocPrefix = "/usr/local"

// Inference server: "vllm" or "sglang" sets package, module and unit paths
// server = "vllm"
// package = "vllm"
// torchBackend = "cu128"

// Service
// serviceName = "vllm"
// workDir = "/opt/vllm"
// modelId = "Qwen/Qwen2.5-1.5B-Instruct"
// listenHost = "0.0.0.0"
// listenPort = 8000
// restartSec = 10

// Run
// recordPath = "/var/lib/infersetup/last-run.pkl"
// stepTimeoutMinutes = 60
`

var initCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a configuration template",
	Long:  `Creates infersetup.pkl (or the given file) listing every setting with its default.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path := "infersetup.pkl"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "%s already exists, leaving it unchanged\n", path)
		return nil
	}

	if err := os.WriteFile(path, []byte(formatPkl(configTemplate)), 0644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	fmt.Fprintf(out, "Created %s\n", path)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to pick the model and port\n", path)
	fmt.Fprintf(out, "  2. Run 'infersetup check -c %s' to test the host\n", path)
	fmt.Fprintf(out, "  3. Run 'infersetup provision -c %s' as root\n", path)

	return nil
}
