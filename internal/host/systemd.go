package host

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	systemdDest = "org.freedesktop.systemd1"
	systemdPath = dbus.ObjectPath("/org/freedesktop/systemd1")
)

// ServiceManager controls the host service manager.
type ServiceManager interface {
	// Reload makes the manager re-read unit files from disk.
	Reload(ctx context.Context) error
}

// SystemdManager talks to systemd over the system D-Bus.
type SystemdManager struct{}

func NewSystemdManager() *SystemdManager {
	return &SystemdManager{}
}

// Reload is the equivalent of `systemctl daemon-reload`.
func (m *SystemdManager) Reload(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(systemdDest, systemdPath)
	if call := obj.CallWithContext(ctx, systemdDest+".Manager.Reload", 0); call.Err != nil {
		return fmt.Errorf("systemd reload failed: %w", call.Err)
	}
	return nil
}
