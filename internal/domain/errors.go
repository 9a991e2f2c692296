package domain

import "fmt"

// UnknownAgentError indicates a requested agent ID has no definition.
// Configuration errors are terminal: they are never retried.
type UnknownAgentError struct {
	AgentID string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent: %s", e.AgentID)
}
