package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/infersetup/infersetup/internal/ir"
)

// Manager writes run records to a local file.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the record file location.
func (m *Manager) Path() string {
	return m.path
}

// Write replaces the record file with record.
func (m *Manager) Write(ctx context.Context, record *ir.RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	if err := os.WriteFile(m.path, []byte(SerializeRecord(record)), 0644); err != nil {
		return fmt.Errorf("failed to write run record %s: %w", m.path, err)
	}

	return nil
}

// SerializeRecord converts a RunRecord to its PKL text representation.
func SerializeRecord(record *ir.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// infersetup run record\n")
	fmt.Fprintf(&b, "id = %q\n", record.ID)
	fmt.Fprintf(&b, "startedAt = %q\n", record.StartedAt)
	fmt.Fprintf(&b, "finishedAt = %q\n", record.FinishedAt)
	fmt.Fprintf(&b, "arch = %q\n", record.Arch)
	fmt.Fprintf(&b, "gpu = %q\n", record.GPU)
	fmt.Fprintf(&b, "packageVersion = %q\n", record.PackageVersion)
	fmt.Fprintf(&b, "unitPath = %q\n", record.UnitPath)
	fmt.Fprintf(&b, "aborted = %t\n\n", record.Aborted)

	if len(record.Results) == 0 {
		fmt.Fprintf(&b, "results = new Listing {}\n")
		return b.String()
	}

	fmt.Fprintf(&b, "results {\n")
	for _, res := range record.Results {
		fmt.Fprintf(&b, "  new {\n")
		fmt.Fprintf(&b, "    step = %q\n", res.Step)
		fmt.Fprintf(&b, "    outcome = %q\n", res.Outcome.String())
		fmt.Fprintf(&b, "    message = %q\n", res.Message)
		fmt.Fprintf(&b, "    skipped = %t\n", res.Skipped)
		if res.Err != nil {
			fmt.Fprintf(&b, "    error = %q\n", res.Err.Error())
		}
		fmt.Fprintf(&b, "  }\n")
	}
	fmt.Fprintf(&b, "}\n")

	return b.String()
}
