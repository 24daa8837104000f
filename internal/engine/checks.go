package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/infersetup/infersetup/internal/host"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
)

// CUDAHomeVar is exported to the process and the shell profile when unset.
const CUDAHomeVar = "CUDA_HOME"

// Each check is split into an observation of host state, a pure
// classification of that observation, and (for the provisioning run only)
// a confirmation or mutation.

func classifyPrivilege(euid int) ir.StepResult {
	if euid != 0 {
		return ir.Fatal("this command must be run as root (try sudo)", nil)
	}
	return ir.Passed("running as root")
}

func (e *Engine) checkPrivileges(ctx context.Context) ir.StepResult {
	return classifyPrivilege(e.deps.System.Geteuid())
}

type osObservation struct {
	Release      host.OSRelease
	NameMatch    bool
	VersionMatch bool
}

func observeOS(sys host.System, cfg *ir.Config) (osObservation, error) {
	rel, err := sys.OSRelease()
	if err != nil {
		return osObservation{}, err
	}
	return osObservation{
		Release:      rel,
		NameMatch:    strings.EqualFold(rel.Name, cfg.ExpectedOSName) || strings.EqualFold(rel.ID, cfg.ExpectedOSName),
		VersionMatch: rel.VersionID == cfg.ExpectedOSVersion,
	}, nil
}

// classifyOS reports whether the operator has to confirm before continuing.
func classifyOS(obs osObservation, cfg *ir.Config) (ir.StepResult, bool) {
	if !obs.NameMatch {
		name := obs.Release.Name
		if name == "" {
			name = obs.Release.ID
		}
		return ir.Fatal(fmt.Sprintf("unsupported OS %q, expected %s", name, cfg.ExpectedOSName), nil), false
	}
	if !obs.VersionMatch {
		return ir.Warned(fmt.Sprintf("%s %s detected, this setup targets %s %s",
			cfg.ExpectedOSName, obs.Release.VersionID, cfg.ExpectedOSName, cfg.ExpectedOSVersion)), true
	}
	return ir.Passed(fmt.Sprintf("%s %s", cfg.ExpectedOSName, obs.Release.VersionID)), false
}

func (e *Engine) checkOS(ctx context.Context) ir.StepResult {
	obs, err := observeOS(e.deps.System, e.cfg)
	if err != nil {
		return ir.Fatal("cannot identify the operating system", err)
	}
	res, needsConfirm := classifyOS(obs, e.cfg)
	if !needsConfirm {
		return res
	}

	logging.Warn(res.Message)
	if !e.deps.Confirm("Continue anyway? (y/n): ") {
		return ir.Fatal("aborted by operator on OS version mismatch", nil)
	}
	return res
}

type cudaObservation struct {
	NvccPath   string
	Release    string
	Major      int
	VersionErr error
	SmiPath    string
	GPUName    string
	GPUErr     error
}

// gpu is the reported device name, or "unknown" when the query failed.
func (o cudaObservation) gpu() string {
	if o.GPUErr != nil || o.GPUName == "" {
		return unknownGPU
	}
	return o.GPUName
}

const unknownGPU = "unknown"

// parseNvccRelease extracts "12.8" and 12 from `nvcc --version` output,
// which carries a line like "Cuda compilation tools, release 12.8, V12.8.93".
func parseNvccRelease(out string) (string, int, error) {
	_, rest, ok := strings.Cut(out, "release ")
	if !ok {
		return "", 0, fmt.Errorf("no release found in nvcc output")
	}
	release, _, _ := strings.Cut(rest, ",")
	release = strings.TrimSpace(release)

	v, err := semver.NewVersion(release)
	if err != nil {
		return "", 0, fmt.Errorf("invalid CUDA release %q: %w", release, err)
	}
	return release, int(v.Major()), nil
}

func (e *Engine) observeCUDA(ctx context.Context) cudaObservation {
	var obs cudaObservation

	if p, err := e.deps.System.LookPath("nvcc"); err == nil {
		obs.NvccPath = p
		out, err := e.deps.Runner.Output(ctx, p, "--version")
		if err != nil {
			obs.VersionErr = err
		} else {
			obs.Release, obs.Major, obs.VersionErr = parseNvccRelease(out)
		}
	}

	if p, err := e.deps.System.LookPath("nvidia-smi"); err == nil {
		obs.SmiPath = p
		out, err := e.deps.Runner.Output(ctx, p, "--query-gpu=name", "--format=csv,noheader")
		if err != nil {
			obs.GPUErr = err
		} else {
			obs.GPUName = firstLine(out)
		}
	}

	return obs
}

func classifyCUDA(obs cudaObservation, cfg *ir.Config) ir.StepResult {
	if obs.NvccPath == "" {
		return ir.Fatal(fmt.Sprintf("CUDA toolkit not found (nvcc is not on PATH); install CUDA %d from %s",
			cfg.CUDAMajor, cfg.CUDADownloadURL), nil)
	}
	if obs.SmiPath == "" {
		return ir.Fatal("nvidia-smi not found; install the NVIDIA driver", nil)
	}

	// Only a missing toolkit or driver is fatal. An unreadable version or a
	// failing device query is deferred to run time.
	switch {
	case obs.VersionErr != nil:
		return ir.Warned(fmt.Sprintf("cannot determine the CUDA toolkit version (%v); continuing (GPU: %s)",
			obs.VersionErr, obs.gpu()))
	case obs.Major != cfg.CUDAMajor:
		return ir.Warned(fmt.Sprintf("CUDA %s found, expected %d.x; continuing (GPU: %s)",
			obs.Release, cfg.CUDAMajor, obs.gpu()))
	case obs.GPUErr != nil:
		return ir.Warned(fmt.Sprintf("CUDA %s, but nvidia-smi cannot query GPUs (%v); continuing (GPU: %s)",
			obs.Release, obs.GPUErr, unknownGPU))
	}
	return ir.Passed(fmt.Sprintf("CUDA %s, GPU: %s", obs.Release, obs.gpu()))
}

func (e *Engine) checkCUDA(ctx context.Context) ir.StepResult {
	obs := e.observeCUDA(ctx)
	res := classifyCUDA(obs, e.cfg)
	if res.Outcome != ir.FatalAbort {
		e.gpuName = obs.gpu()
	}
	return res
}

func classifyRuntimes(names []string, err error) ir.StepResult {
	if err != nil {
		return ir.Passed("Docker not reachable, skipping container runtime check")
	}
	for _, n := range names {
		if n == "nvidia" {
			return ir.Passed("Docker has the nvidia runtime registered")
		}
	}
	return ir.Warned("Docker has no nvidia runtime; containers will not see the GPU until nvidia-container-toolkit is configured")
}

func (e *Engine) checkContainerRuntime(ctx context.Context) ir.StepResult {
	if e.deps.Runtimes == nil {
		res := ir.Passed("container runtime check disabled")
		res.Skipped = true
		return res
	}
	return classifyRuntimes(e.deps.Runtimes.Runtimes(ctx))
}

func observeCUDAHome(env host.Environment) (string, bool) {
	v, ok := env.Getenv(CUDAHomeVar)
	return v, ok && v != ""
}

// checkCUDAHome sets CUDA_HOME for this process and appends it to the
// shell profile when it is unset. Re-running appends again.
func (e *Engine) checkCUDAHome(ctx context.Context) ir.StepResult {
	if v, ok := observeCUDAHome(e.deps.Env); ok {
		return ir.Passed(fmt.Sprintf("%s=%s", CUDAHomeVar, v))
	}
	if err := e.deps.Env.Setenv(CUDAHomeVar, e.cfg.CUDAHome); err != nil {
		return ir.Fatal("failed to set "+CUDAHomeVar, err)
	}
	if err := e.deps.Env.Persist(CUDAHomeVar, e.cfg.CUDAHome); err != nil {
		return ir.Fatal("failed to persist "+CUDAHomeVar, err)
	}
	return ir.Passed(fmt.Sprintf("%s set to %s and added to %s", CUDAHomeVar, e.cfg.CUDAHome, e.cfg.ShellProfile))
}

// Inspect evaluates the precondition checks without prompting and without
// changing the host.
func (e *Engine) Inspect(ctx context.Context) []*ir.StepResult {
	var results []*ir.StepResult
	add := func(step string, res ir.StepResult) {
		res.Step = step
		results = append(results, &res)
	}

	add("check-privileges", classifyPrivilege(e.deps.System.Geteuid()))

	if obs, err := observeOS(e.deps.System, e.cfg); err != nil {
		add("check-os", ir.Fatal("cannot identify the operating system", err))
	} else {
		res, needsConfirm := classifyOS(obs, e.cfg)
		if needsConfirm {
			res.Message += " (provision will ask for confirmation)"
		}
		add("check-os", res)
	}

	add("check-cuda", classifyCUDA(e.observeCUDA(ctx), e.cfg))

	if e.deps.Runtimes != nil {
		add("check-container-runtime", classifyRuntimes(e.deps.Runtimes.Runtimes(ctx)))
	}

	if v, ok := observeCUDAHome(e.deps.Env); ok {
		add("check-cuda-home", ir.Passed(fmt.Sprintf("%s=%s", CUDAHomeVar, v)))
	} else {
		add("check-cuda-home", ir.Passed(fmt.Sprintf("%s unset; provision will set it to %s", CUDAHomeVar, e.cfg.CUDAHome)))
	}

	return results
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
