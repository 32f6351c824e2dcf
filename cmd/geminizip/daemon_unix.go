//go:build unix

package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
)

// inheritedListener adopts the listener passed by the foreground parent on
// fd 3 during background detachment.
func inheritedListener() (net.Listener, bool, error) {
	if os.Getenv(inheritedListenerEnv) == "" {
		return nil, false, nil
	}
	f := os.NewFile(3, "listener")
	if f == nil {
		return nil, true, fmt.Errorf("no inherited listener on fd 3")
	}
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, true, fmt.Errorf("adopt inherited listener: %w", err)
	}
	return ln, true, nil
}

// detach re-executes the binary in a new session with /dev/null stdio and
// the already-bound listener on fd 3, then lets the parent exit. Startup
// validation has already completed in the parent, so nothing fatal is left
// to be eaten by the detached process.
func detach(ln net.Listener) error {
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("cannot pass %T to background process", ln)
	}
	lf, err := tl.File()
	if err != nil {
		return fmt.Errorf("dup listener: %w", err)
	}
	defer lf.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own executable: %w", err)
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), inheritedListenerEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.ExtraFiles = []*os.File{lf}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start background process: %w", err)
	}

	fmt.Fprintf(os.Stderr, "geminizip: detached into background, pid %d\n", cmd.Process.Pid)
	return nil
}
