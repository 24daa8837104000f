package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/infersetup/infersetup/internal/ir"
)

// UnknownVersion is reported when the installed package hides its version.
const UnknownVersion = "unknown"

// pythonMinorMatches reports whether `python --version` output such as
// "Python 3.12.3" is on the wanted minor release.
func pythonMinorMatches(out, want string) bool {
	v, err := semver.NewVersion(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "Python")))
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint("~" + want)
	if err != nil {
		return false
	}
	return c.Check(v)
}

func (e *Engine) verifyPython(ctx context.Context) ir.StepResult {
	out, err := e.deps.Runner.Output(ctx, e.cfg.Python(), "--version")
	if err != nil {
		return ir.Fatal(e.cfg.Python()+" is not runnable", err)
	}
	if !pythonMinorMatches(out, e.cfg.PythonVersion) {
		return ir.Fatal(fmt.Sprintf("%s reports %q, need Python %s", e.cfg.Python(), out, e.cfg.PythonVersion), nil)
	}
	return ir.Passed(out)
}

// moduleName is the import name of a distribution, e.g. "flash-attn" ->
// "flash_attn" and "sglang[all]" -> "sglang".
func moduleName(pkg string) string {
	name, _, _ := strings.Cut(pkg, "[")
	return strings.ReplaceAll(name, "-", "_")
}

func (e *Engine) packageVersion(ctx context.Context) string {
	mod := moduleName(e.cfg.Package)
	out, err := e.deps.Runner.Output(ctx, e.cfg.Python(), "-c", "import "+mod+"; print("+mod+".__version__)")
	if err != nil || strings.TrimSpace(out) == "" {
		return UnknownVersion
	}
	return firstLine(out)
}

func (e *Engine) verifyPackage(ctx context.Context) ir.StepResult {
	mod := moduleName(e.cfg.Package)
	if _, err := e.deps.Runner.Output(ctx, e.cfg.Python(), "-c", "import "+mod); err != nil {
		return ir.Fatal(e.cfg.Package+" is not importable", err)
	}
	e.pkgVersion = e.packageVersion(ctx)
	return ir.Passed(fmt.Sprintf("%s %s", e.cfg.Package, e.pkgVersion))
}

// verifyGPURuntime only warns: the server needs a GPU at run time, not at
// setup time.
func (e *Engine) verifyGPURuntime(ctx context.Context) ir.StepResult {
	out, err := e.deps.Runner.Output(ctx, e.cfg.Python(), "-c", "import torch; print(torch.cuda.is_available())")
	if err != nil || firstLine(out) != "True" {
		return ir.Warned("PyTorch reports no CUDA device; the service will fail until a GPU is available")
	}
	return ir.Passed("PyTorch sees a CUDA device")
}
