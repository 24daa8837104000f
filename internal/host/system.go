package host

import (
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// System answers identity questions about the host.
type System interface {
	Geteuid() int
	// Arch returns the machine hardware name as uname(2) reports it,
	// e.g. "x86_64" or "aarch64".
	Arch() (string, error)
	LookPath(name string) (string, error)
	OSRelease() (OSRelease, error)
}

// LocalSystem is the System of the machine the binary runs on.
type LocalSystem struct {
	OSReleasePath string
}

func NewLocalSystem() *LocalSystem {
	return &LocalSystem{OSReleasePath: OSReleasePath}
}

func (s *LocalSystem) Geteuid() int {
	return unix.Geteuid()
}

func (s *LocalSystem) Arch() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}
	return unix.ByteSliceToString(u.Machine[:]), nil
}

func (s *LocalSystem) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (s *LocalSystem) OSRelease() (OSRelease, error) {
	return ReadOSRelease(s.OSReleasePath)
}
