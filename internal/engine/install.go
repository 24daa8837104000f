package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/infersetup/infersetup/internal/host"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
)

// runAll runs commands in order and stops at the first failure.
func (e *Engine) runAll(ctx context.Context, cmds [][]string) error {
	for _, c := range cmds {
		logging.Info("running", "cmd", host.CommandLine(c[0], c[1:]...))
		if err := e.deps.Runner.Run(ctx, c[0], c[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) buildToolCommands() [][]string {
	install := append([]string{"apt-get", "install", "-y"}, e.cfg.AptPackages...)
	return [][]string{
		{"apt-get", "update"},
		install,
	}
}

func (e *Engine) installBuildTools(ctx context.Context) ir.StepResult {
	if err := e.runAll(ctx, e.buildToolCommands()); err != nil {
		return ir.Fatal("failed to install build tools", err)
	}
	return ir.Passed(fmt.Sprintf("installed %s", strings.Join(e.cfg.AptPackages, ", ")))
}

func (e *Engine) pythonCommands() [][]string {
	py := e.cfg.Python()
	return [][]string{
		{"add-apt-repository", "-y", e.cfg.PythonPPA},
		{"apt-get", "update"},
		{"apt-get", "install", "-y", py, py + "-venv", py + "-dev", "python3-pip"},
		{"update-alternatives", "--install", "/usr/bin/python3", "python3", "/usr/bin/" + py, "1"},
	}
}

func (e *Engine) installPython(ctx context.Context) ir.StepResult {
	if err := e.runAll(ctx, e.pythonCommands()); err != nil {
		return ir.Fatal("failed to install "+e.cfg.Python(), err)
	}
	return ir.Passed(e.cfg.Python() + " installed and registered as python3")
}

// TorchIndex is the extra package index carrying the pinned CUDA build.
func (e *Engine) TorchIndex() string {
	return strings.TrimSuffix(e.cfg.TorchIndexURL, "/") + "/" + e.cfg.TorchBackend
}

// serverCommands installs into the system interpreter, which Ubuntu marks
// externally managed (PEP 668), so both installers need
// --break-system-packages.
func (e *Engine) serverCommands() [][]string {
	py := e.cfg.Python()
	return [][]string{
		{py, "-m", "pip", "install", "--upgrade", "--break-system-packages", "uv"},
		{
			"uv", "pip", "install",
			"--system",
			"--break-system-packages",
			"--python", py,
			"--prerelease=allow",
			"--index-strategy", "unsafe-best-match",
			"--extra-index-url", e.TorchIndex(),
			e.cfg.Package,
		},
	}
}

func (e *Engine) installInferenceServer(ctx context.Context) ir.StepResult {
	if err := e.runAll(ctx, e.serverCommands()); err != nil {
		return ir.Fatal("failed to install "+e.cfg.Package, err)
	}
	return ir.Passed(fmt.Sprintf("%s installed against %s", e.cfg.Package, e.cfg.TorchBackend))
}
