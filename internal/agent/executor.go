package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// executeOptions configures subprocess execution for agent CLI invocations.
type executeOptions struct {
	// Command is the CLI executable name.
	Command string
	// Args are the command-line arguments.
	Args []string
	// Stdin provides input to the command, typically the prompt.
	Stdin io.Reader
	// WorkDir sets the working directory for the command.
	WorkDir string
}

// executeCommand runs a CLI command with process group setup and stderr
// capture, returning a cmdReader streaming the command's stdout.
func executeCommand(ctx context.Context, opts executeOptions) (*cmdReader, error) {
	// #nosec G204 - Command is the configured agent CLI binary, not user input.
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	// Process group so cancellation can kill spawned children too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command, err)
	}

	return &cmdReader{
		Reader: stdout,
		cmd:    cmd,
		ctx:    ctx,
		stderr: stderr,
	}, nil
}
