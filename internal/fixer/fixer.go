package fixer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/agentic-quality-orchestrator/internal/agent"
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/git"
	"github.com/anthropics/agentic-quality-orchestrator/internal/github"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/review"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
	"github.com/anthropics/agentic-quality-orchestrator/internal/ticket"
)

// fixTools grants the fix agent write access to the worktree. Review
// passes never get these.
var fixTools = []string{"Read", "Grep", "Glob", "Edit", "Write", "Bash"}

// reviewEngine is the slice of review.Reviewer a fix session consumes.
type reviewEngine interface {
	Review(ctx context.Context, workDir, baseRef, issueText string) (domain.ReviewAnalysis, error)
	VerifyDismissals(ctx context.Context, claims []review.DismissalClaim) []domain.ReviewItem
}

// Result is the terminal outcome of one fix session.
type Result struct {
	Status domain.SessionStatus
	Record *domain.FixRecord
	// Review is the last analysis produced, zero when no review ran.
	Review domain.ReviewAnalysis
}

// Session drives one issue through repeated fix and review cycles
// inside an isolated worktree until the review comes back clean or the
// iteration ceiling is hit.
type Session struct {
	invoker  agent.Invoker
	reviewer reviewEngine
	tickets  ticket.Store
	records  *RecordStore
	policy   retry.Policy
	logger   *terminal.Logger

	maxIterations int
	model         string
	now           func() time.Time

	// git operations, swappable in tests
	repoRoot       func() (string, error)
	defaultBranch  func(ctx context.Context, repoDir string) (string, error)
	branchName     func(issueID string) (string, error)
	createWorktree func(branch, baseRef string) (*git.Worktree, error)
	hasChanges     func(ctx context.Context, workDir string) (bool, error)
	commitAll      func(ctx context.Context, workDir, message string) error
	push           func(ctx context.Context, workDir, branch string) error
	createPR       func(ctx context.Context, workDir, baseBranch, headBranch, title, body string) (string, error)
	getPRURL       func(ctx context.Context, workDir, branch string) (string, error)
}

func NewSession(invoker agent.Invoker, reviewer reviewEngine, tickets ticket.Store, records *RecordStore, policy retry.Policy, logger *terminal.Logger, maxIterations int, model string) *Session {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Session{
		invoker:        invoker,
		reviewer:       reviewer,
		tickets:        tickets,
		records:        records,
		policy:         policy,
		logger:         logger,
		maxIterations:  maxIterations,
		model:          model,
		now:            time.Now,
		repoRoot:       git.GetRoot,
		defaultBranch:  git.DefaultBranch,
		branchName:     git.FixBranchName,
		createWorktree: git.CreateFixWorktree,
		hasChanges:     git.HasChanges,
		commitAll:      git.CommitAll,
		push:           git.Push,
		createPR:       github.CreatePR,
		getPRURL:       github.GetPRURL,
	}
}

// Run executes the fix session for one issue. Iteration N+1 never
// starts before iteration N's review completes. The worktree is
// preserved on iteration_limit for manual follow-up.
func (s *Session) Run(ctx context.Context, issueID string) (*Result, error) {
	exists, err := s.tickets.Exists(issueID)
	if err != nil {
		return nil, fmt.Errorf("checking ticket %s: %w", issueID, err)
	}
	if !exists {
		s.logger.Logf(terminal.StyleDim, "ticket %s no longer exists, nothing to fix", issueID)
		return &Result{Status: domain.SessionAlreadyFixed}, nil
	}

	issueText, err := s.tickets.Read(issueID)
	if err != nil {
		return nil, fmt.Errorf("reading ticket %s: %w", issueID, err)
	}

	root, err := s.repoRoot()
	if err != nil {
		return nil, fmt.Errorf("locating repository: %w", err)
	}
	baseRef, err := s.defaultBranch(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("resolving default branch: %w", err)
	}
	branch, err := s.branchName(issueID)
	if err != nil {
		return nil, fmt.Errorf("naming fix branch: %w", err)
	}
	wt, err := s.createWorktree(branch, baseRef)
	if err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}

	rec := &domain.FixRecord{
		IssueID:      issueID,
		BranchName:   wt.Branch,
		WorktreePath: wt.Path,
		Status:       domain.FixInProgress,
		StartedAt:    s.now().UTC(),
	}
	if err := s.records.Save(rec); err != nil {
		return nil, err
	}

	result, err := s.iterate(ctx, rec, wt.Path, baseRef, issueText)
	if err != nil {
		rec.Status = domain.FixError
		rec.Error = err.Error()
		s.stamp(rec)
		if saveErr := s.records.Save(rec); saveErr != nil {
			s.logger.Logf(terminal.StyleWarning, "saving fix record: %v", saveErr)
		}
		return &Result{Status: domain.SessionError, Record: rec}, err
	}
	result.Record = rec
	return result, nil
}

func (s *Session) iterate(ctx context.Context, rec *domain.FixRecord, workDir, baseRef, issueText string) (*Result, error) {
	var outstanding []domain.ReviewItem
	var lastReview domain.ReviewAnalysis

	for iteration := 1; iteration <= s.maxIterations; iteration++ {
		s.logger.Logf(terminal.StylePhase, "fix attempt %d/%d", iteration, s.maxIterations)

		fixText, err := s.fixAttempt(ctx, workDir, issueText, outstanding)
		if err != nil {
			return nil, fmt.Errorf("fix attempt %d: %w", iteration, err)
		}

		changed, err := s.hasChanges(ctx, workDir)
		if err != nil {
			return nil, fmt.Errorf("checking worktree: %w", err)
		}
		if changed {
			msg := fmt.Sprintf("fix: %s (attempt %d)", rec.IssueID, iteration)
			if err := s.commitAll(ctx, workDir, msg); err != nil {
				return nil, fmt.Errorf("committing fix: %w", err)
			}
		}

		rec.Iterations = iteration
		if err := s.records.Save(rec); err != nil {
			return nil, err
		}

		// The ticket may have been resolved out of band while the
		// agent was running.
		exists, err := s.tickets.Exists(rec.IssueID)
		if err != nil {
			return nil, fmt.Errorf("checking ticket %s: %w", rec.IssueID, err)
		}
		if !exists {
			return &Result{Status: domain.SessionAlreadyFixed}, nil
		}

		analysis, err := s.reviewer.Review(ctx, workDir, baseRef, issueText)
		if err != nil {
			return nil, fmt.Errorf("reviewing attempt %d: %w", iteration, err)
		}
		lastReview = analysis

		kept := s.verifyDismissals(ctx, fixText, outstanding)
		outstanding = mergeFindings(analysis.ActionableItems(), kept)

		if len(outstanding) == 0 {
			rec.Status = domain.FixReadyForReview
			s.stamp(rec)
			if err := s.records.Save(rec); err != nil {
				return nil, err
			}
			s.logger.Logf(terminal.StyleSuccess, "fix converged after %d attempt(s)", iteration)
			return &Result{Status: domain.SessionSuccess, Review: analysis}, nil
		}
		s.logger.Logf(terminal.StyleWarning, "%d finding(s) still open", len(outstanding))
	}

	s.logger.Logf(terminal.StyleWarning, "iteration limit reached, worktree preserved at %s", rec.WorktreePath)
	return &Result{Status: domain.SessionIterationLimit, Review: lastReview}, nil
}

func (s *Session) fixAttempt(ctx context.Context, workDir, issueText string, outstanding []domain.ReviewItem) (string, error) {
	prompt := buildFixPrompt(issueText, outstanding)

	var text string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		res, err := s.invoker.Invoke(ctx, agent.Request{
			Prompt:       prompt,
			WorkDir:      workDir,
			AllowedTools: fixTools,
			Model:        s.model,
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return retry.MarkTransient(fmt.Errorf("fix agent exited with code %d", res.ExitCode))
		}
		text = res.Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// verifyDismissals matches the fix agent's declined findings against
// the items it was asked to address, then re-judges each skeptically.
// The returned items stay outstanding.
func (s *Session) verifyDismissals(ctx context.Context, fixText string, outstanding []domain.ReviewItem) []domain.ReviewItem {
	claims := matchDismissals(parseDismissals(fixText), outstanding)
	if len(claims) == 0 {
		return nil
	}
	s.logger.Logf(terminal.StyleDim, "verifying %d dismissal(s)", len(claims))
	return s.reviewer.VerifyDismissals(ctx, claims)
}

type dismissal struct {
	Description   string `json:"description"`
	Justification string `json:"justification"`
}

// parseDismissals pulls the optional resolved-claims object out of a
// fix agent's summary. Absent or malformed claims are benign.
func parseDismissals(text string) []dismissal {
	raw, err := agent.ExtractJSON(text)
	if err != nil {
		return nil
	}
	var payload struct {
		Resolved []dismissal `json:"resolved"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Resolved
}

// matchDismissals pairs each claim with the outstanding finding it
// refers to. Claims that match nothing are dropped; the agent cannot
// dismiss findings it was never given.
func matchDismissals(dismissals []dismissal, outstanding []domain.ReviewItem) []review.DismissalClaim {
	var claims []review.DismissalClaim
	for _, d := range dismissals {
		want := strings.ToLower(strings.TrimSpace(d.Description))
		if want == "" {
			continue
		}
		for _, item := range outstanding {
			have := strings.ToLower(item.Description)
			if strings.Contains(have, want) || strings.Contains(want, have) {
				claims = append(claims, review.DismissalClaim{
					Finding:       item,
					Justification: d.Justification,
				})
				break
			}
		}
	}
	return claims
}

// mergeFindings combines the current review's actionable items with
// dismissed-but-unverified findings, deduplicating by description.
func mergeFindings(actionable, kept []domain.ReviewItem) []domain.ReviewItem {
	merged := make([]domain.ReviewItem, 0, len(actionable)+len(kept))
	seen := make(map[string]bool)
	for _, item := range actionable {
		key := strings.ToLower(item.Description)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, item)
		}
	}
	for _, item := range kept {
		key := strings.ToLower(item.Description)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, item)
		}
	}
	return merged
}

// OpenPR pushes the fix branch and opens a pull request for a session
// that converged. A PR already open for the branch is reused, so
// re-running fix --pr after a partial failure never files a duplicate.
// The record advances to pr_created.
func (s *Session) OpenPR(ctx context.Context, rec *domain.FixRecord, baseBranch string) (string, error) {
	if rec.Status != domain.FixReadyForReview {
		return "", fmt.Errorf("fix for %s is %s, not ready for review", rec.IssueID, rec.Status)
	}

	url, err := s.getPRURL(ctx, rec.WorktreePath, rec.BranchName)
	switch {
	case err == nil:
		s.logger.Logf(terminal.StyleDim, "reusing open pull request for %s", rec.BranchName)
	case errors.Is(err, github.ErrNoPRFound):
		if err := s.push(ctx, rec.WorktreePath, rec.BranchName); err != nil {
			return "", fmt.Errorf("pushing %s: %w", rec.BranchName, err)
		}
		title := fmt.Sprintf("Fix %s", rec.IssueID)
		body := fmt.Sprintf("Automated fix for issue `%s` after %d fix/review iteration(s).", rec.IssueID, rec.Iterations)
		url, err = s.createPR(ctx, rec.WorktreePath, baseBranch, rec.BranchName, title, body)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("checking for existing pull request: %w", err)
	}

	rec.Status = domain.FixPRCreated
	rec.PRURL = url
	if err := s.records.Save(rec); err != nil {
		return "", err
	}
	return url, nil
}

func (s *Session) stamp(rec *domain.FixRecord) {
	t := s.now().UTC()
	rec.CompletedAt = &t
}
