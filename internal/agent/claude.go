package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Compile-time interface check
var _ Invoker = (*ClaudeInvoker)(nil)

// ClaudeInvoker runs prompts through the claude CLI in non-interactive
// mode with stream-json output, so callers see progress while the agent
// works instead of waiting on a silent subprocess.
type ClaudeInvoker struct {
	// Binary overrides the claude executable name. Empty means "claude".
	Binary string
}

// NewClaudeInvoker creates a ClaudeInvoker using the claude binary from PATH.
func NewClaudeInvoker() *ClaudeInvoker {
	return &ClaudeInvoker{}
}

func (c *ClaudeInvoker) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "claude"
}

// IsAvailable checks that the claude CLI is installed and accessible.
func (c *ClaudeInvoker) IsAvailable() error {
	if _, err := exec.LookPath(c.binary()); err != nil {
		return fmt.Errorf("claude CLI not found in PATH: %w", err)
	}
	return nil
}

// buildArgs assembles the CLI argument list for a request. The prompt is
// always passed via stdin ("-") to avoid ARG_MAX limits on large inputs.
func (c *ClaudeInvoker) buildArgs(req Request) []string {
	args := []string{
		"--print",   // non-interactive mode
		"--verbose", // required for stream-json output
		"--output-format", "stream-json",
	}

	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}

	return append(args, "-")
}

// Invoke runs the prompt and waits for the agent to finish. A non-zero
// process exit code is reported in the Result, not as an error; an error
// means the subprocess could not be started or its stream could not be
// read.
func (c *ClaudeInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	if err := c.IsAvailable(); err != nil {
		return nil, err
	}

	reader, err := executeCommand(ctx, executeOptions{
		Command: c.binary(),
		Args:    c.buildArgs(req),
		Stdin:   strings.NewReader(req.Prompt),
		WorkDir: req.WorkDir,
	})
	if err != nil {
		return nil, err
	}

	text, parseErr := parseStream(reader, req.OnProgress)

	// Close waits for the process; exit code is only valid afterwards.
	_ = reader.Close()

	if parseErr != nil {
		if stderr := reader.Stderr(); stderr != "" {
			return nil, fmt.Errorf("reading agent output: %w (stderr: %s)", parseErr, truncate(stderr, 500))
		}
		return nil, fmt.Errorf("reading agent output: %w", parseErr)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return &Result{
		Text:     text,
		ExitCode: reader.ExitCode(),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
