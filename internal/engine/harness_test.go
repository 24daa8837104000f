package engine

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/infersetup/infersetup/internal/host/hosttest"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
)

const (
	nvccCmd    = "/usr/local/cuda/bin/nvcc --version"
	smiCmd     = "/usr/bin/nvidia-smi --query-gpu=name --format=csv,noheader"
	pyVersion  = "python3.12 --version"
	pyImport   = "python3.12 -c import vllm"
	pyPkgVer   = "python3.12 -c import vllm; print(vllm.__version__)"
	pyTorchGPU = "python3.12 -c import torch; print(torch.cuda.is_available())"
)

type harness struct {
	cfg      *ir.Config
	sys      *hosttest.System
	env      *hosttest.Environment
	runner   *hosttest.Runner
	fetcher  *hosttest.Fetcher
	services *hosttest.ServiceManager
	runtimes *hosttest.Runtimes
	prompter *hosttest.Prompter
	logs     *bytes.Buffer
}

// newHarness returns a healthy Ubuntu 24.04 / CUDA 12.8 host where every
// command succeeds and protoc is already installed.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := ir.DefaultConfig()
	cfg.UnitPath = filepath.Join(dir, "etc", "systemd", "system", "vllm.service")
	cfg.WorkDir = filepath.Join(dir, "opt", "vllm")
	cfg.ProtocPrefix = filepath.Join(dir, "usr", "local")
	cfg.ShellProfile = filepath.Join(dir, "root", ".bashrc")

	sys := hosttest.NewUbuntuNoble()
	sys.Paths["protoc"] = "/usr/local/bin/protoc"

	runner := hosttest.NewRunner().
		On(nvccCmd, "nvcc: NVIDIA (R) Cuda compiler driver\nCuda compilation tools, release 12.8, V12.8.93", nil).
		On(smiCmd, "NVIDIA L4\nNVIDIA L4", nil).
		On(pyVersion, "Python 3.12.3", nil).
		On(pyPkgVer, "0.8.5", nil).
		On(pyTorchGPU, "True", nil)

	logs := &bytes.Buffer{}
	logging.Setup("debug", logs, false)

	return &harness{
		cfg:      cfg,
		sys:      sys,
		env:      hosttest.NewEnvironment(),
		runner:   runner,
		fetcher:  &hosttest.Fetcher{},
		services: &hosttest.ServiceManager{},
		runtimes: &hosttest.Runtimes{Names: []string{"nvidia", "runc"}},
		prompter: &hosttest.Prompter{},
		logs:     logs,
	}
}

func (h *harness) engine() *Engine {
	return NewEngine(h.cfg, Deps{
		System:   h.sys,
		Env:      h.env,
		Runner:   h.runner,
		Fetcher:  h.fetcher,
		Services: h.services,
		Runtimes: h.runtimes,
		Confirm:  h.prompter.Confirm,
	})
}

func resultFor(rec *ir.RunRecord, step string) *ir.StepResult {
	for _, r := range rec.Results {
		if r.Step == step {
			return r
		}
	}
	return nil
}
