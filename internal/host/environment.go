package host

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment is the operator environment: process variables plus the
// shell profile that makes them durable.
type Environment interface {
	Getenv(key string) (string, bool)
	Setenv(key, value string) error
	// Persist appends an export line for key to the shell profile. It never
	// deduplicates.
	Persist(key, value string) error
}

// OSEnvironment is the Environment of the running process.
type OSEnvironment struct {
	ProfilePath string
}

func NewOSEnvironment(profilePath string) *OSEnvironment {
	return &OSEnvironment{ProfilePath: profilePath}
}

func (e *OSEnvironment) Getenv(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (e *OSEnvironment) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

func (e *OSEnvironment) Persist(key, value string) error {
	if err := os.MkdirAll(filepath.Dir(e.ProfilePath), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	f, err := os.OpenFile(e.ProfilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.ProfilePath, err)
	}
	defer f.Close()

	if _, err := fmt.Fprint(f, ExportLine(key, value)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", e.ProfilePath, err)
	}
	return nil
}

// ExportLine renders a shell declaration for key.
func ExportLine(key, value string) string {
	return fmt.Sprintf("export %s=%s\n", key, value)
}
