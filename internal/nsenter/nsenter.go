//go:build linux

// Package nsenter places the process into a target mount and PID namespace
// pair and remounts procfs so descriptor paths resolve inside it.
package nsenter

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Enter joins the mount namespace at mountNSPath and the PID namespace at
// pidNSPath. This mutates process state irreversibly; call it once, before
// any other component is constructed, from a goroutine locked to its OS
// thread (setns applies to the calling thread only). The namespace handles
// are closed before returning; they are inert once entry succeeded.
func Enter(mountNSPath, pidNSPath string) error {
	mfd, err := unix.Open(mountNSPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open mount namespace %s: %w", mountNSPath, err)
	}
	defer unix.Close(mfd)

	pfd, err := unix.Open(pidNSPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open pid namespace %s: %w", pidNSPath, err)
	}
	defer unix.Close(pfd)

	if err := unix.Setns(mfd, unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("setns mount namespace: %w", err)
	}
	if err := unix.Setns(pfd, unix.CLONE_NEWPID); err != nil {
		return fmt.Errorf("setns pid namespace: %w", err)
	}
	return nil
}

// MountProc mounts procfs on /proc inside the entered namespaces.
func MountProc() error {
	if err := unix.Mount("proc", "/proc", "proc", unix.MS_NOSUID|unix.MS_NODEV, ""); err != nil {
		return fmt.Errorf("mount /proc: %w", err)
	}
	return nil
}
