package domain

// CandidateIssue is an unvalidated finding produced by a scan pass.
// The orchestrator treats its fields as opaque payload: it counts and
// routes candidates but never interprets them.
type CandidateIssue struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id,omitempty"`
	Title       string `json:"title"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	Description string `json:"description,omitempty"`
}

// Vote is one validation judgment over a candidate issue.
type Vote struct {
	IssueID string `json:"id"`
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// ApprovedIssue is a candidate that survived validation and
// arbitration, annotated with its assigned ticket reference.
type ApprovedIssue struct {
	CandidateIssue
	TicketRef string `json:"ticket_ref"`
}
