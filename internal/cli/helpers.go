package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/infersetup/infersetup/internal/engine"
	"github.com/infersetup/infersetup/internal/eval"
	"github.com/infersetup/infersetup/internal/host"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

var noColor bool

// colorize returns code unless colors are disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// loadConfig returns the defaults merged with the --config file, if any.
// --server takes precedence over the file's server preset.
var loadConfig = func(ctx context.Context) (*ir.Config, error) {
	cfg, err := eval.Load(ctx, viper.GetString("config"), nil)
	if err != nil {
		return nil, err
	}
	if name := viper.GetString("server"); name != "" {
		if err := cfg.UseServer(name); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newDeps wires the engine to the real host. The returned func releases
// any connections.
var newDeps = func(cfg *ir.Config, cmd *cobra.Command) (engine.Deps, func()) {
	runner := host.NewExecRunner()
	runner.Stdout = cmd.OutOrStdout()
	runner.Stderr = cmd.ErrOrStderr()
	runner.Env = []string{"DEBIAN_FRONTEND=noninteractive"}

	runtimes := host.NewDockerRuntimes()

	deps := engine.Deps{
		System:   host.NewLocalSystem(),
		Env:      host.NewOSEnvironment(cfg.ShellProfile),
		Runner:   runner,
		Fetcher:  host.NewHTTPFetcher(),
		Services: host.NewSystemdManager(),
		Runtimes: runtimes,
	}
	return deps, func() { _ = runtimes.Close() }
}

// promptConfirm asks on out and reads one answer line from in.
func promptConfirm(in io.Reader, out io.Writer) engine.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func outcomeColor(o ir.Outcome) string {
	switch o {
	case ir.WarnContinue:
		return colorYellow
	case ir.FatalAbort:
		return colorRed
	}
	return colorGreen
}

func outcomeSymbol(o ir.Outcome) string {
	switch o {
	case ir.WarnContinue:
		return "!"
	case ir.FatalAbort:
		return "x"
	}
	return "+"
}

// renderResults prints one line per step result.
func renderResults(w io.Writer, results []*ir.StepResult) {
	for _, res := range results {
		c := colorize(outcomeColor(res.Outcome))
		fmt.Fprintf(w, "%s  %s %-26s%s %s\n", c, outcomeSymbol(res.Outcome), res.Step, colorize(colorReset), res.Message)
	}
}

// renderSummary prints what was installed and how to start the server.
func renderSummary(w io.Writer, cfg *ir.Config, record *ir.RunRecord) {
	fmt.Fprintf(w, "\n%sProvisioning complete!%s\n", colorize(colorBold+colorGreen), colorize(colorReset))
	fmt.Fprintf(w, "  GPU:      %s\n", valueOr(record.GPU, "unknown"))
	fmt.Fprintf(w, "  %s: %s\n", padRight(cfg.Package, 8), valueOr(record.PackageVersion, engine.UnknownVersion))
	fmt.Fprintf(w, "  Unit:     %s\n", cfg.UnitPath)
	fmt.Fprintf(w, "  Model:    %s\n", cfg.ModelID)
	fmt.Fprintf(w, "  Listen:   %s:%d\n", cfg.ListenHost, cfg.ListenPort)

	if warnings := record.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(w, "\n%sWarnings:%s\n", colorize(colorYellow), colorize(colorReset))
		renderResults(w, warnings)
	}

	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintf(w, "  systemctl enable --now %s\n", cfg.ServiceName)
	fmt.Fprintf(w, "  journalctl -u %s -f\n", cfg.ServiceName)
	fmt.Fprintf(w, "  curl http://localhost:%d/v1/models\n", cfg.ListenPort)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
