package engine

import (
	"context"
	"time"

	"github.com/infersetup/infersetup/internal/host"
	"github.com/infersetup/infersetup/internal/ir"
)

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(prompt string) bool

// Deps are the host services the pipeline acts through.
type Deps struct {
	System   host.System
	Env      host.Environment
	Runner   host.Runner
	Fetcher  host.Fetcher
	Services host.ServiceManager
	Runtimes host.RuntimeLister // optional
	Confirm  ConfirmFunc
}

// Step is one named unit of the provisioning pipeline.
type Step struct {
	Name        string
	Kind        ir.StepKind
	Description string
	Run         func(ctx context.Context) ir.StepResult
}

// Engine provisions a host by running its steps in order.
type Engine struct {
	cfg  *ir.Config
	deps Deps

	StepTimeout time.Duration

	// BeforeInstall, if set, runs once after the checks and before the
	// first step that changes the host. An error aborts the run.
	BeforeInstall func() error

	// facts gathered while running, reported in the run record
	arch       string
	gpuName    string
	pkgVersion string
}

func NewEngine(cfg *ir.Config, deps Deps) *Engine {
	if deps.Confirm == nil {
		deps.Confirm = func(string) bool { return false }
	}
	return &Engine{
		cfg:         cfg,
		deps:        deps,
		StepTimeout: time.Duration(cfg.StepTimeoutMinutes) * time.Minute,
	}
}

// Steps returns the pipeline in execution order. Checks always precede
// installation actions.
func (e *Engine) Steps() []Step {
	return []Step{
		{"check-privileges", ir.KindCheck, "require root", e.checkPrivileges},
		{"check-os", ir.KindCheck, "require " + e.cfg.ExpectedOSName + " " + e.cfg.ExpectedOSVersion, e.checkOS},
		{"check-cuda", ir.KindCheck, "require nvcc and nvidia-smi", e.checkCUDA},
		{"check-container-runtime", ir.KindCheck, "look for the Docker nvidia runtime", e.checkContainerRuntime},
		{"check-cuda-home", ir.KindCheck, "set and persist CUDA_HOME", e.checkCUDAHome},
		{"install-build-tools", ir.KindInstall, "apt-get install build tools", e.installBuildTools},
		{"install-python", ir.KindInstall, "install " + e.cfg.Python() + " from " + e.cfg.PythonPPA, e.installPython},
		{"install-protoc", ir.KindInstall, "download protoc " + e.cfg.ProtocVersion, e.installProtoc},
		{"install-inference-server", ir.KindInstall, "uv pip install " + e.cfg.Package + " (" + e.cfg.TorchBackend + ")", e.installInferenceServer},
		{"verify-python", ir.KindVerify, "require " + e.cfg.Python(), e.verifyPython},
		{"verify-package", ir.KindVerify, "import " + e.cfg.Package + " and report its version", e.verifyPackage},
		{"verify-gpu-runtime", ir.KindVerify, "ask PyTorch for a CUDA device", e.verifyGPURuntime},
		{"write-service", ir.KindEmit, "write " + e.cfg.UnitPath + " and reload systemd", e.writeService},
	}
}

// Plan describes the steps without running them.
func (e *Engine) Plan() []ir.PlannedStep {
	steps := e.Steps()
	planned := make([]ir.PlannedStep, 0, len(steps))
	for i, s := range steps {
		planned = append(planned, ir.PlannedStep{
			Index:       i + 1,
			Name:        s.Name,
			Kind:        s.Kind,
			Description: s.Description,
		})
	}
	return planned
}
