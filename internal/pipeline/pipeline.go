// Package pipeline runs one agent's scan-validate-arbitrate pass and
// records approved issues as tickets.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/agentic-quality-orchestrator/internal/agent"
	"github.com/anthropics/agentic-quality-orchestrator/internal/config"
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
	"github.com/anthropics/agentic-quality-orchestrator/internal/ticket"
)

// Outcome is the detailed result of one agent's pipeline pass. The
// batch run state persists only its Counts; the full issue content
// lives in tickets.
type Outcome struct {
	Candidates []domain.CandidateIssue
	Approved   []domain.ApprovedIssue
	Rejected   []domain.CandidateIssue
}

// Counts folds the outcome into the compact form run state stores.
func (o *Outcome) Counts() *domain.ScanResult {
	res := &domain.ScanResult{
		Candidates: len(o.Candidates),
		Approved:   len(o.Approved),
		Rejected:   len(o.Rejected),
	}
	for _, a := range o.Approved {
		if a.TicketRef != "" {
			res.Tickets = append(res.Tickets, a.ID)
		}
	}
	return res
}

// Runner executes the scan pipeline for individual agents.
type Runner struct {
	invoker   agent.Invoker
	tickets   ticket.Store
	policy    retry.Policy
	logger    *terminal.Logger
	batchSize int
	workDir   string
	model     string
}

// New creates a pipeline runner. batchSize bounds how many candidates
// go into a single validation call.
func New(invoker agent.Invoker, tickets ticket.Store, policy retry.Policy, logger *terminal.Logger, batchSize int, workDir, model string) *Runner {
	if batchSize < 1 {
		batchSize = config.DefaultValidationBatchSize
	}
	return &Runner{
		invoker:   invoker,
		tickets:   tickets,
		policy:    policy,
		logger:    logger,
		batchSize: batchSize,
		workDir:   workDir,
		model:     model,
	}
}

// Run executes the full pipeline for one agent: scan, validate in
// batches, arbitrate, then create tickets for the approved issues.
// A scan that finds nothing returns an empty outcome without invoking
// validation at all.
func (r *Runner) Run(ctx context.Context, spec config.AgentSpec, prompt string) (*Outcome, error) {
	candidates, err := r.scan(ctx, spec, prompt)
	if err != nil {
		return nil, fmt.Errorf("agent %s scan: %w", spec.ID, err)
	}

	outcome := &Outcome{Candidates: candidates}
	if len(candidates) == 0 {
		return outcome, nil
	}

	votes := r.validate(ctx, spec.ID, candidates)
	outcome.Approved, outcome.Rejected = Arbitrate(candidates, votes)

	for i := range outcome.Approved {
		ref, err := r.tickets.Create(outcome.Approved[i].CandidateIssue)
		if err != nil {
			// The issue stays approved; only its ticket is missing.
			r.logger.Logf(terminal.StyleWarning, "agent %s: ticket for %s failed: %v",
				spec.ID, outcome.Approved[i].ID, err)
			continue
		}
		outcome.Approved[i].TicketRef = ref
	}

	return outcome, nil
}

// scanResponse is the JSON contract scan agents reply with.
type scanResponse struct {
	Candidates []domain.CandidateIssue `json:"candidates"`
}

// scan runs the agent's scan prompt and parses the candidate list,
// retrying transient failures under the runner's policy.
func (r *Runner) scan(ctx context.Context, spec config.AgentSpec, prompt string) ([]domain.CandidateIssue, error) {
	full := buildScanPrompt(prompt, spec.Patterns)

	var candidates []domain.CandidateIssue
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		result, err := r.invoker.Invoke(ctx, agent.Request{
			Prompt:       full,
			WorkDir:      r.workDir,
			AllowedTools: spec.AllowedTools,
			Model:        r.model,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return retry.MarkTransient(fmt.Errorf("scan agent exited %d", result.ExitCode))
		}

		parsed, err := parseScanOutput(result.Text)
		if err != nil {
			return err
		}
		candidates = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidates[i].AgentID = spec.ID
		if candidates[i].ID == "" {
			candidates[i].ID = slugify(spec.ID, candidates[i].Title, i)
		}
	}
	return candidates, nil
}

// parseScanOutput extracts the candidate list from raw agent text.
// Both the contract object form and a bare JSON array are accepted.
func parseScanOutput(text string) ([]domain.CandidateIssue, error) {
	raw, err := agent.ExtractJSON(text)
	if err != nil {
		return nil, retry.MarkTransient(fmt.Errorf("scan output: %w", err))
	}

	if strings.HasPrefix(raw, "[") {
		var list []domain.CandidateIssue
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		return list, nil
	}

	var resp scanResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("scan output: %w", err)
	}
	return resp.Candidates, nil
}

// voteResponse is the JSON contract validators reply with.
type voteResponse struct {
	Votes []domain.Vote `json:"votes"`
}

// validate runs candidates through the skeptical validator in fixed
// sequential batches. A batch whose validation fails after retries
// rejects that batch's candidates only; other batches are unaffected.
func (r *Runner) validate(ctx context.Context, agentID string, candidates []domain.CandidateIssue) []domain.Vote {
	var votes []domain.Vote

	for start := 0; start < len(candidates); start += r.batchSize {
		end := start + r.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		batchVotes, err := r.validateBatch(ctx, batch)
		if err != nil {
			r.logger.Logf(terminal.StyleWarning, "agent %s: validation batch %d-%d failed, rejecting: %v",
				agentID, start, end-1, err)
			for _, c := range batch {
				votes = append(votes, domain.Vote{
					IssueID: c.ID,
					Approve: false,
					Reason:  "validation unavailable",
				})
			}
			continue
		}
		votes = append(votes, batchVotes...)
	}

	return votes
}

func (r *Runner) validateBatch(ctx context.Context, batch []domain.CandidateIssue) ([]domain.Vote, error) {
	payload, err := json.Marshal(map[string]any{"candidates": batch})
	if err != nil {
		return nil, fmt.Errorf("marshal validation batch: %w", err)
	}

	var votes []domain.Vote
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		result, err := r.invoker.Invoke(ctx, agent.Request{
			Prompt:       buildValidationPrompt(string(payload)),
			WorkDir:      r.workDir,
			AllowedTools: []string{"Read", "Grep", "Glob"},
			Model:        r.model,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return retry.MarkTransient(fmt.Errorf("validator exited %d", result.ExitCode))
		}

		raw, err := agent.ExtractJSON(result.Text)
		if err != nil {
			return retry.MarkTransient(fmt.Errorf("validation output: %w", err))
		}
		var resp voteResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return fmt.Errorf("validation output: %w", err)
		}
		votes = resp.Votes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// Arbitrate splits candidates into approved and rejected based on
// votes. It is a pure function: a candidate is approved only by an
// explicit approving vote, and a missing vote rejects it.
func Arbitrate(candidates []domain.CandidateIssue, votes []domain.Vote) ([]domain.ApprovedIssue, []domain.CandidateIssue) {
	byID := make(map[string]domain.Vote, len(votes))
	for _, v := range votes {
		byID[v.IssueID] = v
	}

	var approved []domain.ApprovedIssue
	var rejected []domain.CandidateIssue
	for _, c := range candidates {
		if v, ok := byID[c.ID]; ok && v.Approve {
			approved = append(approved, domain.ApprovedIssue{CandidateIssue: c})
		} else {
			rejected = append(rejected, c)
		}
	}
	return approved, rejected
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify builds a stable issue ID from the agent, title, and position.
func slugify(agentID, title string, idx int) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = slug[:40]
		slug = strings.Trim(slug, "-")
	}
	if slug == "" {
		return fmt.Sprintf("%s-%d", agentID, idx)
	}
	return fmt.Sprintf("%s-%s", agentID, slug)
}
