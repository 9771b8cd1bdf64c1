package autostart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const serviceName = "batchwatch"

type AutoStarter interface {
	Install(execPath string, args []string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{}
	case "linux":
		return &LinuxAutoStarter{}
	default:
		return &UnsupportedAutoStarter{}
	}
}

var (
	ErrAlreadyInstalled = errors.New("batchwatch autostart is already installed")
	ErrNotInstalled     = errors.New("batchwatch autostart is not installed")
)

// Register installs the service unless one is already registered. force
// overwrites an existing registration.
func Register(as AutoStarter, execPath string, args []string, force bool) error {
	installed, err := as.IsInstalled()
	if err != nil {
		return fmt.Errorf("failed to check autostart: %w", err)
	}
	if installed && !force {
		return ErrAlreadyInstalled
	}

	return as.Install(execPath, args)
}

// Unregister removes the service, or returns ErrNotInstalled when there is
// nothing to remove.
func Unregister(as AutoStarter) error {
	installed, err := as.IsInstalled()
	if err != nil {
		return fmt.Errorf("failed to check autostart: %w", err)
	}
	if !installed {
		return ErrNotInstalled
	}

	return as.Uninstall()
}

// commandLine quotes execPath and every argument that contains a space.
func commandLine(execPath string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, p := range append([]string{execPath}, args...) {
		if strings.ContainsAny(p, " \t") {
			p = `"` + p + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_ string, _ []string) error {
	return nil
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}
