package scheduler

import (
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

// Summary aggregates a finished batch for reporting. Agents that ran
// and found nothing are successes, not noise: they appear in Completed
// with zero counts.
type Summary struct {
	Completed []string
	Failed    []string
	Skipped   []string

	Candidates int
	Approved   int
	Rejected   int
	Tickets    []string
}

// Summarize folds a batch run into a Summary. The skip set marks agents
// a resume never re-ran; their prior results still count toward totals.
func Summarize(run *domain.BatchRun, skip map[string]bool) Summary {
	var s Summary
	total := domain.ScanResult{}

	for _, task := range run.Agents {
		switch task.Status {
		case domain.TaskCompleted:
			if skip[task.AgentID] {
				s.Skipped = append(s.Skipped, task.AgentID)
			} else {
				s.Completed = append(s.Completed, task.AgentID)
			}
			if task.Result != nil {
				total.Add(*task.Result)
			}
		case domain.TaskError:
			s.Failed = append(s.Failed, task.AgentID)
		default:
			// Pending or running tasks mean the batch was interrupted;
			// they count as neither success nor failure.
		}
	}

	s.Candidates = total.Candidates
	s.Approved = total.Approved
	s.Rejected = total.Rejected
	s.Tickets = total.Tickets
	return s
}
