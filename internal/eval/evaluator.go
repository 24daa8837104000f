package eval

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/apple/pkl-go/pkl"
	"github.com/infersetup/infersetup/internal/ir"
)

// Evaluator loads infersetup configuration written in Pkl.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
	}
}

// LoadConfig evaluates entryPoint and returns the properties it sets. Unset
// properties stay zero; callers merge the result over ir.DefaultConfig.
func (e *Evaluator) LoadConfig(ctx context.Context, entryPoint string, properties map[string]string) (*ir.Config, error) {
	u, err := url.Parse("file://" + e.projectDir + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse project directory URL: %w", err)
	}

	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewProjectEvaluator(ctx, u, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg ir.Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(e.projectDir, entryPoint), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate config: %w", err)
	}

	return &cfg, nil
}

// Load resolves path, evaluates it and merges it over the defaults.
func Load(ctx context.Context, path string, properties map[string]string) (*ir.Config, error) {
	cfg := ir.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	override, err := NewEvaluator(filepath.Dir(abs)).LoadConfig(ctx, filepath.Base(abs), properties)
	if err != nil {
		return nil, err
	}
	if override.Server != "" {
		if err := cfg.UseServer(override.Server); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.Merge(override)
	return cfg, nil
}
