// Package domain provides core types for the quality orchestrator.
package domain

import "time"

// TaskStatus represents the lifecycle state of one agent's scan task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// Terminal returns true if the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskError
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition. Statuses never move backward.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskRunning || next == TaskCompleted || next == TaskError
	case TaskRunning:
		return next == TaskCompleted || next == TaskError
	default:
		return false
	}
}

// ScanResult holds the per-agent counts a completed pipeline reports.
// A result with Error set on its task is structurally identical to a
// successful-but-empty result; aggregation must not conflate the two.
type ScanResult struct {
	Candidates int      `json:"candidates"`
	Approved   int      `json:"approved"`
	Rejected   int      `json:"rejected"`
	Tickets    []string `json:"tickets,omitempty"`
}

// Add folds other into r. Addition is associative, so batch totals are
// identical regardless of worker completion order or concurrency.
func (r *ScanResult) Add(other ScanResult) {
	r.Candidates += other.Candidates
	r.Approved += other.Approved
	r.Rejected += other.Rejected
	r.Tickets = append(r.Tickets, other.Tickets...)
}

// AgentTask tracks one agent's progress within a batch run.
type AgentTask struct {
	AgentID string      `json:"agent_id"`
	Status  TaskStatus  `json:"status"`
	Error   string      `json:"error,omitempty"`
	Result  *ScanResult `json:"result,omitempty"`
}

// BatchRun is the persisted state of one batch scan. The scheduler
// never mutates a BatchRun in place; every transition produces a new
// value via runstate.Update.
type BatchRun struct {
	RunID           string     `json:"run_id"`
	RequestedAgents []string   `json:"requested_agents"`
	Agents          []AgentTask `json:"agents"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Concurrency     int        `json:"concurrency"`

	// IsStale is derived at load time, never persisted.
	IsStale bool `json:"-"`
}

// Task returns the task for agentID, or nil if the run has none.
func (b *BatchRun) Task(agentID string) *AgentTask {
	for i := range b.Agents {
		if b.Agents[i].AgentID == agentID {
			return &b.Agents[i]
		}
	}
	return nil
}

// Unfinished reports whether any task is still pending or running.
// CompletedAt is nil exactly while this is true.
func (b *BatchRun) Unfinished() bool {
	for _, t := range b.Agents {
		if !t.Status.Terminal() {
			return true
		}
	}
	return false
}
