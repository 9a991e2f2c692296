package domain

// ExitCode represents the process exit status of the orchestrator.
// A batch scan exits ExitOK even when individual agents fail; failures
// are reported in the summary output, not via distinct exit codes.
type ExitCode int

const (
	// ExitOK indicates the requested operation ran to completion.
	ExitOK ExitCode = 0
	// ExitError indicates the operation could not start or aborted.
	ExitError ExitCode = 2
	// ExitInterrupted indicates the operation was interrupted by a signal.
	ExitInterrupted ExitCode = 130
)

// Int returns the exit code as an int for use with os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}
