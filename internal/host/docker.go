package host

import (
	"context"
	"fmt"
	"sort"

	"github.com/docker/docker/client"
)

// RuntimeLister lists the OCI runtimes a container engine advertises.
type RuntimeLister interface {
	Runtimes(ctx context.Context) ([]string, error)
}

// DockerRuntimes asks the local Docker daemon for its registered runtimes.
type DockerRuntimes struct {
	client *client.Client
}

func NewDockerRuntimes() *DockerRuntimes {
	return &DockerRuntimes{}
}

func (p *DockerRuntimes) ensureClient() error {
	if p.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	p.client = cli
	return nil
}

func (p *DockerRuntimes) Runtimes(ctx context.Context) ([]string, error) {
	if err := p.ensureClient(); err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	info, err := p.client.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query Docker daemon: %w", err)
	}

	names := make([]string, 0, len(info.Runtimes))
	for name := range info.Runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the client connection, if one was opened.
func (p *DockerRuntimes) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
