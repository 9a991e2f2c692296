// Package agent provides the LLM agent invocation client.
package agent

import "context"

// ProgressKind identifies the shape of a streamed progress event.
type ProgressKind string

const (
	// ProgressText is an assistant text chunk.
	ProgressText ProgressKind = "text"
	// ProgressTool is a tool-use notification.
	ProgressTool ProgressKind = "tool"
)

// ProgressEvent is delivered to Request.OnProgress as the subprocess
// streams output, before Invoke resolves.
type ProgressEvent struct {
	Kind ProgressKind
	// Text holds the assistant text chunk for ProgressText events.
	Text string
	// Tool holds the tool name for ProgressTool events.
	Tool string
}

// Request configures one agent invocation.
type Request struct {
	// Prompt is the full prompt text, passed via stdin to avoid
	// ARG_MAX limits on large inputs.
	Prompt string

	// WorkDir is the working directory for the subprocess. Empty means
	// the current directory.
	WorkDir string

	// AllowedTools restricts which tools the agent may use. Review
	// passes pass a read-only set; write access is never granted to a
	// reviewer.
	AllowedTools []string

	// Model selects a specific model. Empty uses the CLI default.
	Model string

	// OnProgress, if non-nil, receives streamed events as they arrive.
	OnProgress func(ProgressEvent)
}

// Result is the outcome of one agent invocation. A non-zero ExitCode
// is reported here rather than as an error; Invoke returns an error
// only when the subprocess could not be started or its output stream
// could not be read.
type Result struct {
	Text     string
	ExitCode int
}

// Invoker runs one prompt through an agent backend.
// Implementations must be safe for concurrent use: the scheduler
// shares one Invoker across all workers.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}
