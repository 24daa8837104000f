package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/infersetup/infersetup/internal/engine"
	"github.com/infersetup/infersetup/internal/host/hosttest"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
	"github.com/infersetup/infersetup/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	nvccCmd   = "/usr/local/cuda/bin/nvcc --version"
	smiCmd    = "/usr/bin/nvidia-smi --query-gpu=name --format=csv,noheader"
	pyVersion = "python3.12 --version"
	pyPkgVer  = "python3.12 -c import vllm; print(vllm.__version__)"
	pyTorch   = "python3.12 -c import torch; print(torch.cuda.is_available())"
)

type fakeHost struct {
	cfg      *ir.Config
	sys      *hosttest.System
	env      *hosttest.Environment
	runner   *hosttest.Runner
	services *hosttest.ServiceManager
}

// withFakeHost points the commands at an in-memory Ubuntu 24.04 host with
// all files under a temp dir.
func withFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	dir := t.TempDir()

	cfg := ir.DefaultConfig()
	cfg.UnitPath = filepath.Join(dir, "vllm.service")
	cfg.WorkDir = filepath.Join(dir, "opt", "vllm")
	cfg.ShellProfile = filepath.Join(dir, ".bashrc")
	cfg.RecordPath = filepath.Join(dir, "state", "last-run.pkl")

	sys := hosttest.NewUbuntuNoble()
	sys.Paths["protoc"] = "/usr/local/bin/protoc"

	fh := &fakeHost{
		cfg: cfg,
		sys: sys,
		env: hosttest.NewEnvironment(),
		runner: hosttest.NewRunner().
			On(nvccCmd, "Cuda compilation tools, release 12.8, V12.8.93", nil).
			On(smiCmd, "NVIDIA L4", nil).
			On(pyVersion, "Python 3.12.3", nil).
			On(pyPkgVer, "0.8.5", nil).
			On(pyTorch, "True", nil),
		services: &hosttest.ServiceManager{},
	}

	origDeps, origLoad := newDeps, loadConfig
	newDeps = func(*ir.Config, *cobra.Command) (engine.Deps, func()) {
		return engine.Deps{
			System:   fh.sys,
			Env:      fh.env,
			Runner:   fh.runner,
			Fetcher:  &hosttest.Fetcher{},
			Services: fh.services,
			Runtimes: &hosttest.Runtimes{Names: []string{"nvidia", "runc"}},
		}, func() {}
	}
	loadConfig = func(context.Context) (*ir.Config, error) {
		c := *fh.cfg
		return &c, nil
	}
	t.Cleanup(func() {
		newDeps, loadConfig = origDeps, origLoad
	})
	return fh
}

// execute runs the root command with args and returns everything written
// to stdout. Flags are reset around each run since the command tree is global.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() { resetFlags(rootCmd) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestProvisionSuccess(t *testing.T) {
	fh := withFakeHost(t)

	out, err := execute(t, "", "provision")
	require.NoError(t, err)

	assert.Contains(t, out, "==> [1/13] check-privileges")
	assert.Contains(t, out, "Provisioning complete!")
	assert.Contains(t, out, "NVIDIA L4")
	assert.Contains(t, out, "0.8.5")
	assert.Contains(t, out, "systemctl enable --now vllm")

	assert.FileExists(t, fh.cfg.UnitPath)
	assert.FileExists(t, fh.cfg.RecordPath)
	assert.NoFileExists(t, fh.cfg.RecordPath+".lock")
	assert.Equal(t, 1, fh.services.Reloads)

	record, err := os.ReadFile(fh.cfg.RecordPath)
	require.NoError(t, err)
	assert.Contains(t, string(record), `packageVersion = "0.8.5"`)
	assert.Contains(t, string(record), "aborted = false")
}

func TestProvisionOSVersionDeclined(t *testing.T) {
	fh := withFakeHost(t)
	fh.sys.Release.VersionID = "22.04"

	out, err := execute(t, "n\n", "provision")
	require.Error(t, err)

	var abort *engine.AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "check-os", abort.Step)

	assert.Contains(t, out, "Continue anyway? (y/n): ")
	assert.False(t, fh.runner.Called("apt-get"))
	assert.False(t, fh.runner.Called("add-apt-repository"))
	assert.NoFileExists(t, fh.cfg.UnitPath)

	record, err := os.ReadFile(fh.cfg.RecordPath)
	require.NoError(t, err)
	assert.Contains(t, string(record), "aborted = true")
}

func TestProvisionOSVersionAccepted(t *testing.T) {
	fh := withFakeHost(t)
	fh.sys.Release.VersionID = "22.04"

	out, err := execute(t, "yes\n", "provision")
	require.NoError(t, err)
	assert.Contains(t, out, "[WARN]")
	assert.True(t, fh.runner.Called("apt-get install"))
}

func TestProvisionYesFlagSkipsPrompt(t *testing.T) {
	fh := withFakeHost(t)
	fh.sys.Release.VersionID = "22.04"

	out, err := execute(t, "", "provision", "--yes")
	require.NoError(t, err)
	assert.NotContains(t, out, "Continue anyway?")
}

func TestProvisionPromptEOFDeclines(t *testing.T) {
	fh := withFakeHost(t)
	fh.sys.Release.VersionID = "22.04"

	_, err := execute(t, "", "provision")
	require.Error(t, err)
	assert.False(t, fh.runner.Called("apt-get"))
}

func TestProvisionWithoutNvcc(t *testing.T) {
	fh := withFakeHost(t)
	delete(fh.sys.Paths, "nvcc")

	out, err := execute(t, "", "provision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://developer.nvidia.com/cuda-downloads")
	assert.Contains(t, out, "[ERROR]")
	assert.False(t, fh.runner.Called("apt-get"))
	assert.False(t, fh.runner.Called("python3.12 -m pip"))
}

func TestProvisionRecordFlag(t *testing.T) {
	withFakeHost(t)
	path := filepath.Join(t.TempDir(), "run.pkl")

	_, err := execute(t, "", "provision", "--record", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestProvisionLocked(t *testing.T) {
	fh := withFakeHost(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(fh.cfg.RecordPath), 0755))
	require.NoError(t, os.WriteFile(fh.cfg.RecordPath+".lock", []byte("pid=1\n"), 0644))

	_, err := execute(t, "", "provision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another infersetup run is in progress")
	assert.True(t, fh.runner.Called(nvccCmd), "checks run before the lock is taken")
	assert.False(t, fh.runner.Called("apt-get"))
	assert.FileExists(t, fh.cfg.RecordPath+".lock", "a foreign lock is left alone")
}

func TestProvisionNotRootWithUnwritableRecordDir(t *testing.T) {
	fh := withFakeHost(t)
	fh.sys.EUID = 1000

	blocker := filepath.Join(t.TempDir(), "var")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))
	fh.cfg.RecordPath = filepath.Join(blocker, "lib", "infersetup", "last-run.pkl")

	out, err := execute(t, "", "provision")
	require.Error(t, err)

	var abort *engine.AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "check-privileges", abort.Step)
	assert.Contains(t, out, "[ERROR] this command must be run as root")
	assert.NotContains(t, err.Error(), "lock")
	assert.Empty(t, fh.runner.Calls)
}

func TestReleaseLockReportsFailure(t *testing.T) {
	out := &bytes.Buffer{}
	logging.Setup("info", out, false)

	path := filepath.Join(t.TempDir(), "last-run.pkl")
	// A non-empty directory at the lock path cannot be removed.
	require.NoError(t, os.MkdirAll(filepath.Join(path+".lock", "stuck"), 0755))

	releaseLock(state.NewManager(path))
	assert.Contains(t, out.String(), "[WARN] failed to release run lock")
}

func TestCheckHealthyHost(t *testing.T) {
	fh := withFakeHost(t)

	out, err := execute(t, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "check-cuda")
	assert.Contains(t, out, "Host is ready to provision.")
	assert.Empty(t, fh.env.Profile)
}

func TestCheckReportsFailures(t *testing.T) {
	fh := withFakeHost(t)
	fh.sys.EUID = 1000
	delete(fh.sys.Paths, "nvcc")

	out, err := execute(t, "", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 check(s) failed")
	assert.Contains(t, out, "check-privileges")
	assert.False(t, fh.runner.Called("apt-get"))
}

func TestPlanWritesYAML(t *testing.T) {
	withFakeHost(t)
	path := filepath.Join(t.TempDir(), "plan.yaml")

	out, err := execute(t, "", "plan", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "13 steps will run")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc planDocument
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "vllm", doc.Package)
	require.Len(t, doc.Steps, 13)
	assert.Equal(t, "check-privileges", doc.Steps[0].Name)
	assert.Equal(t, "write-service", doc.Steps[12].Name)
}

func TestUnitPrintsService(t *testing.T) {
	fh := withFakeHost(t)

	out, err := execute(t, "", "unit")
	require.NoError(t, err)
	assert.Equal(t, engine.RenderService(engine.BuildService(fh.cfg)), out)
	assert.NoFileExists(t, fh.cfg.UnitPath)
}

func TestUnitWithServerPreset(t *testing.T) {
	out, err := execute(t, "", "--server", "sglang", "unit")
	require.NoError(t, err)
	assert.Contains(t, out, "-m sglang.launch_server --model-path Qwen/Qwen2.5-1.5B-Instruct")
	assert.Contains(t, out, "WorkingDirectory=/opt/sglang\n")
}

func TestUnknownServerPreset(t *testing.T) {
	_, err := execute(t, "", "--server", "tgi", "unit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown server "tgi"`)
}

func TestInitWritesTemplateOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infersetup.pkl")

	out, err := execute(t, "", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	require.NoError(t, os.WriteFile(path, []byte("modelId = \"mine\"\n"), 0644))
	out, err = execute(t, "", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "modelId = \"mine\"\n", string(data))
}

func TestValidatePrintsEffectiveConfig(t *testing.T) {
	withFakeHost(t)

	out, err := execute(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "modelId: Qwen/Qwen2.5-1.5B-Instruct")
}

func TestValidateRejectsPort(t *testing.T) {
	fh := withFakeHost(t)
	fh.cfg.ListenPort = 70000

	_, err := execute(t, "", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listenPort")
}

func TestFmtCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infersetup.pkl")
	require.NoError(t, os.WriteFile(path, []byte("a = 1  \n\n\n\nb = 2"), 0644))

	_, err := execute(t, "", "fmt", "--check", dir)
	require.Error(t, err)

	_, err = execute(t, "", "fmt", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a = 1\n\nb = 2\n", string(data))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "infersetup version dev")
}

type fakeBackend struct {
	records []*ir.RunRecord
}

func (b *fakeBackend) Write(ctx context.Context, record *ir.RunRecord) error {
	b.records = append(b.records, record)
	return nil
}

func TestProvisionUploadsReport(t *testing.T) {
	withFakeHost(t)

	backend := &fakeBackend{}
	var got *state.BackendConfig
	orig := newReportBackend
	newReportBackend = func(ctx context.Context, cfg *state.BackendConfig) (state.Backend, error) {
		got = cfg
		return backend, nil
	}
	t.Cleanup(func() { newReportBackend = orig })

	out, err := execute(t, "", "provision", "--report-bucket", "fleet-reports", "--report-region", "eu-west-1")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "s3", got.Type)
	assert.Equal(t, "fleet-reports", got.Config["bucket"])
	assert.Equal(t, "eu-west-1", got.Config["region"])
	require.Len(t, backend.records, 1)
	assert.False(t, backend.records[0].Aborted)
	assert.Contains(t, out, "uploaded run record")
}
