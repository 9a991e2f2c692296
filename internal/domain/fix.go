package domain

import "time"

// FixStatus represents the lifecycle state of one fix session's record.
type FixStatus string

const (
	FixInProgress     FixStatus = "in_progress"
	FixReadyForReview FixStatus = "ready_for_review"
	FixPRCreated      FixStatus = "pr_created"
	FixMerged         FixStatus = "merged"
	FixError          FixStatus = "error"
)

// FixRecord tracks one issue's fix session and its downstream PR
// lifecycle. One worktree is exclusively owned by one FixRecord for
// its lifetime.
type FixRecord struct {
	IssueID      string     `json:"issue_id"`
	BranchName   string     `json:"branch_name"`
	WorktreePath string     `json:"worktree_path"`
	Status       FixStatus  `json:"status"`
	Iterations   int        `json:"iterations"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	PRURL        string     `json:"pr_url,omitempty"`
}

// SessionStatus is the terminal outcome a fix session reports to the
// caller. None of these map to distinct process exit codes.
type SessionStatus string

const (
	SessionSuccess        SessionStatus = "success"
	SessionIterationLimit SessionStatus = "iteration_limit"
	SessionError          SessionStatus = "error"
	SessionAlreadyFixed   SessionStatus = "already_fixed"
)
