// Package hosttest provides in-memory implementations of the host
// interfaces for tests.
package hosttest

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/infersetup/infersetup/internal/host"
)

// System is a scripted host.System.
type System struct {
	EUID       int
	Machine    string
	Paths      map[string]string // binary name -> resolved path
	Release    host.OSRelease
	ReleaseErr error
}

// NewUbuntuNoble returns a root, x86_64, Ubuntu 24.04 host with a CUDA 12
// toolchain on PATH.
func NewUbuntuNoble() *System {
	return &System{
		EUID:    0,
		Machine: "x86_64",
		Paths: map[string]string{
			"nvcc":       "/usr/local/cuda/bin/nvcc",
			"nvidia-smi": "/usr/bin/nvidia-smi",
		},
		Release: host.OSRelease{ID: "ubuntu", Name: "Ubuntu", VersionID: "24.04"},
	}
}

func (s *System) Geteuid() int { return s.EUID }

func (s *System) Arch() (string, error) { return s.Machine, nil }

func (s *System) LookPath(name string) (string, error) {
	if p, ok := s.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (s *System) OSRelease() (host.OSRelease, error) {
	return s.Release, s.ReleaseErr
}

// Environment keeps variables and profile lines in memory.
type Environment struct {
	Vars    map[string]string
	Profile []string
}

func NewEnvironment() *Environment {
	return &Environment{Vars: map[string]string{}}
}

func (e *Environment) Getenv(key string) (string, bool) {
	v, ok := e.Vars[key]
	return v, ok
}

func (e *Environment) Setenv(key, value string) error {
	e.Vars[key] = value
	return nil
}

func (e *Environment) Persist(key, value string) error {
	e.Profile = append(e.Profile, host.ExportLine(key, value))
	return nil
}

// Response is the scripted result of one command line.
type Response struct {
	Out string
	Err error
}

// Runner records every command and answers from Responses, keyed by the
// full command line. Unknown commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	Calls     []string
	Responses map[string]Response
}

func NewRunner() *Runner {
	return &Runner{Responses: map[string]Response{}}
}

// On scripts the response for a command line.
func (r *Runner) On(cmdline string, out string, err error) *Runner {
	r.Responses[cmdline] = Response{Out: out, Err: err}
	return r
}

func (r *Runner) record(name string, args ...string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := host.CommandLine(name, args...)
	r.Calls = append(r.Calls, line)
	return r.Responses[line]
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	return r.record(name, args...).Err
}

func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	resp := r.record(name, args...)
	return resp.Out, resp.Err
}

// Called reports whether any recorded command line starts with prefix.
func (r *Runner) Called(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Fetcher serves a fixed body for every URL.
type Fetcher struct {
	Body []byte
	Err  error
	URLs []string
}

func (f *Fetcher) Fetch(ctx context.Context, url string, w io.Writer) error {
	f.URLs = append(f.URLs, url)
	if f.Err != nil {
		return f.Err
	}
	_, err := w.Write(f.Body)
	return err
}

// ServiceManager counts reloads.
type ServiceManager struct {
	Reloads int
	Err     error
}

func (m *ServiceManager) Reload(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	m.Reloads++
	return nil
}

// Runtimes returns a fixed runtime list.
type Runtimes struct {
	Names []string
	Err   error
}

func (p *Runtimes) Runtimes(ctx context.Context) ([]string, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Names, nil
}

// Prompter answers every confirmation with Answer and records the prompts.
type Prompter struct {
	Answer  bool
	Prompts []string
}

func (p *Prompter) Confirm(prompt string) bool {
	p.Prompts = append(p.Prompts, prompt)
	return p.Answer
}

// ErrExit builds a command failure error.
func ErrExit(code int) error {
	return fmt.Errorf("exit status %d", code)
}
