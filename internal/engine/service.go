package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/infersetup/infersetup/internal/ir"
)

// BuildService derives the service definition from the configuration.
func BuildService(cfg *ir.Config) ir.ServiceDefinition {
	cudaBin := filepath.Join(cfg.CUDAHome, "bin")
	return ir.ServiceDefinition{
		Name:        cfg.ServiceName,
		Description: fmt.Sprintf("%s inference server (%s)", moduleName(cfg.Package), cfg.ModelID),
		After:       []string{"network-online.target"},
		WorkDir:     cfg.WorkDir,
		Environment: [][2]string{
			{"CUDA_HOME", cfg.CUDAHome},
			{"PATH", cudaBin + ":/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"},
			{"HF_HOME", filepath.Join(cfg.WorkDir, ".cache", "huggingface")},
			{"PYTHONUNBUFFERED", "1"},
		},
		ExecStart: []string{
			"/usr/bin/" + cfg.Python(), "-m", cfg.ServerModule,
			cfg.ModelFlag, cfg.ModelID,
			"--host", cfg.ListenHost,
			"--port", strconv.Itoa(cfg.ListenPort),
		},
		Restart:    "on-failure",
		RestartSec: cfg.RestartSec,
		WantedBy:   "multi-user.target",
	}
}

// UnitOptions lays out def as ordered systemd unit options.
func UnitOptions(def ir.ServiceDefinition) []*unit.UnitOption {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", def.Description),
	}
	if len(def.After) > 0 {
		targets := strings.Join(def.After, " ")
		opts = append(opts,
			unit.NewUnitOption("Unit", "After", targets),
			unit.NewUnitOption("Unit", "Wants", targets),
		)
	}

	opts = append(opts,
		unit.NewUnitOption("Service", "Type", "simple"),
		unit.NewUnitOption("Service", "WorkingDirectory", def.WorkDir),
	)
	for _, kv := range def.Environment {
		opts = append(opts, unit.NewUnitOption("Service", "Environment", fmt.Sprintf("%q", kv[0]+"="+kv[1])))
	}
	opts = append(opts,
		unit.NewUnitOption("Service", "ExecStart", execLine(def.ExecStart)),
		unit.NewUnitOption("Service", "Restart", def.Restart),
		unit.NewUnitOption("Service", "RestartSec", strconv.Itoa(def.RestartSec)),
		unit.NewUnitOption("Install", "WantedBy", def.WantedBy),
	)
	return opts
}

// RenderService renders a systemd unit. The output depends only on def.
func RenderService(def ir.ServiceDefinition) string {
	var b strings.Builder
	// Serialize returns an in-memory reader; copying it cannot fail.
	_, _ = io.Copy(&b, unit.Serialize(UnitOptions(def)))
	return b.String()
}

func execLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'\\") {
			quoted[i] = strconv.Quote(a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}

// writeService overwrites the unit file and reloads systemd. Any prior
// content, including manual edits, is replaced.
func (e *Engine) writeService(ctx context.Context) ir.StepResult {
	if err := os.MkdirAll(e.cfg.WorkDir, 0755); err != nil {
		return ir.Fatal("failed to create working directory "+e.cfg.WorkDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(e.cfg.UnitPath), 0755); err != nil {
		return ir.Fatal("failed to create unit directory", err)
	}

	content := RenderService(BuildService(e.cfg))
	if err := os.WriteFile(e.cfg.UnitPath, []byte(content), 0644); err != nil {
		return ir.Fatal("failed to write "+e.cfg.UnitPath, err)
	}

	if err := e.deps.Services.Reload(ctx); err != nil {
		return ir.Fatal("failed to reload systemd units", err)
	}
	return ir.Passed("wrote " + e.cfg.UnitPath)
}
