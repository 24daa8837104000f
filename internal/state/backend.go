package state

import (
	"context"
	"fmt"

	"github.com/infersetup/infersetup/internal/ir"
)

// Backend stores run records.
type Backend interface {
	Write(ctx context.Context, record *ir.RunRecord) error
}

// BackendConfig holds configuration for a record backend.
type BackendConfig struct {
	Type   string            `json:"type"` // "local", "s3"
	Config map[string]string `json:"config"`
}

// NewBackend creates a record backend from configuration.
func NewBackend(ctx context.Context, cfg *BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		path := cfg.Config["path"]
		if path == "" {
			return nil, fmt.Errorf("local backend requires 'path' configuration")
		}
		return NewManager(path), nil
	case "s3":
		return newS3Backend(ctx, cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
