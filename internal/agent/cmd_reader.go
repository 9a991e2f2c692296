package agent

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// cmdReader wraps a subprocess stdout pipe and ensures the command is
// waited on when closed. After Close returns, ExitCode and Stderr report
// the process outcome. Close is safe for concurrent calls; only the first
// call performs cleanup.
type cmdReader struct {
	io.Reader
	cmd       *exec.Cmd
	ctx       context.Context
	stderr    *bytes.Buffer
	exitCode  int
	closeOnce sync.Once
}

// Close waits for the command to complete. If the context was canceled or
// timed out, it kills the entire process group so no orphaned child
// processes are left behind.
func (r *cmdReader) Close() error {
	r.closeOnce.Do(func() {
		if closer, ok := r.Reader.(io.Closer); ok {
			_ = closer.Close()
		}

		if r.cmd != nil && r.cmd.Process != nil {
			// Capture PID before Wait invalidates process state
			pid := r.cmd.Process.Pid

			if r.ctx != nil && r.ctx.Err() != nil {
				// Kill the entire process group (negative PID).
				// Ignore errors; the process may have already exited.
				_ = syscall.Kill(-pid, syscall.SIGKILL)
			}

			err := r.cmd.Wait()
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					r.exitCode = exitErr.ExitCode()
				} else {
					r.exitCode = -1
				}
			}
		}
	})

	return nil
}

// ExitCode returns the process exit code. Only valid after Close.
func (r *cmdReader) ExitCode() int {
	return r.exitCode
}

// Stderr returns captured stderr output. Only valid after Close.
func (r *cmdReader) Stderr() string {
	if r.stderr == nil {
		return ""
	}
	return r.stderr.String()
}
