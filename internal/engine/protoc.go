package engine

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
)

const protocBinary = "bin/protoc"

// ArchToken maps a uname machine name to the architecture token used in
// protoc release archive names. Anything unrecognised falls back to x86_64.
func ArchToken(machine string) string {
	switch machine {
	case "aarch64", "arm64":
		return "aarch_64"
	default:
		return "x86_64"
	}
}

// ProtocURL returns the release archive URL for the given machine.
func ProtocURL(cfg *ir.Config, machine string) string {
	return fmt.Sprintf(cfg.ProtocURLTemplate, cfg.ProtocVersion, ArchToken(machine))
}

func (e *Engine) installProtoc(ctx context.Context) ir.StepResult {
	machine, err := e.deps.System.Arch()
	if err != nil {
		return ir.Fatal("cannot determine CPU architecture", err)
	}
	e.arch = machine

	if p, err := e.deps.System.LookPath("protoc"); err == nil {
		res := ir.Passed("protoc already installed at " + p + ", skipping download")
		res.Skipped = true
		return res
	}

	url := ProtocURL(e.cfg, machine)
	logging.Info("downloading protoc", "url", url)

	tmp, err := os.CreateTemp("", "protoc-*.zip")
	if err != nil {
		return ir.Fatal("failed to create download file", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := e.deps.Fetcher.Fetch(ctx, url, tmp); err != nil {
		return ir.Fatal("failed to download protoc", err)
	}
	if err := tmp.Close(); err != nil {
		return ir.Fatal("failed to write protoc archive", err)
	}

	if err := extractProtoc(tmp.Name(), e.cfg.ProtocPrefix); err != nil {
		return ir.Fatal("failed to extract protoc", err)
	}
	return ir.Passed(fmt.Sprintf("protoc %s installed to %s", e.cfg.ProtocVersion, filepath.Join(e.cfg.ProtocPrefix, protocBinary)))
}

// extractProtoc copies bin/protoc and the include/ tree from a release
// archive into prefix.
func extractProtoc(archive, prefix string) error {
	// Entries with non-local names are skipped below, so an insecure-path
	// report is not an error here.
	zr, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("failed to open %s: %w", archive, err)
	}
	defer zr.Close()

	found := false
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if !filepath.IsLocal(name) || (name != protocBinary && !strings.HasPrefix(name, "include/")) {
			continue
		}
		dst := filepath.Join(prefix, filepath.FromSlash(name))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return err
			}
			continue
		}

		mode := os.FileMode(0644)
		if name == protocBinary {
			mode = 0755
			found = true
		}
		if err := extractFile(f, dst, mode); err != nil {
			return err
		}
	}

	if !found {
		return fmt.Errorf("%s does not contain %s", archive, protocBinary)
	}
	return nil
}

func extractFile(f *zip.File, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}
