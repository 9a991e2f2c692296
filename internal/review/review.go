// Package review runs multi-pass code reviews over fix branches and
// converts their output into severity-classified findings.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/agentic-quality-orchestrator/internal/agent"
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/git"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
)

// readOnlyTools is the tool set review passes run with. Reviewers never
// get write access to the tree they are judging.
var readOnlyTools = []string{"Read", "Grep", "Glob"}

// cleanPhrases mark review text as a "no issues" response. The fast
// path only applies to short replies; a long review that happens to
// contain one of these still goes through classification.
var cleanPhrases = []string{
	"no issues",
	"no findings",
	"no bugs",
	"no problems",
	"looks good",
	"lgtm",
	"code looks clean",
	"code looks correct",
}

const cleanFastPathMaxLen = 200

// Reviewer runs review passes through an agent backend.
type Reviewer struct {
	invoker agent.Invoker
	policy  retry.Policy
	logger  *terminal.Logger
	model   string

	// diff is replaceable for tests.
	diff func(ctx context.Context, baseRef, workDir string) (string, error)
}

// New creates a Reviewer.
func New(invoker agent.Invoker, policy retry.Policy, logger *terminal.Logger, model string) *Reviewer {
	return &Reviewer{
		invoker: invoker,
		policy:  policy,
		logger:  logger,
		model:   model,
		diff:    git.Diff,
	}
}

// pass is one named review perspective.
type pass struct {
	name   string
	prompt string
}

// Review runs the review passes sequentially over the worktree's diff
// against baseRef and merges their findings. The completeness pass runs
// only when issueText is non-empty. The merged analysis is clean only
// when every pass came back clean.
func (r *Reviewer) Review(ctx context.Context, workDir, baseRef, issueText string) (domain.ReviewAnalysis, error) {
	diff, err := r.diff(ctx, baseRef, workDir)
	if err != nil {
		return domain.ReviewAnalysis{}, fmt.Errorf("review diff: %w", err)
	}

	passes := []pass{
		{name: "architecture", prompt: architecturePassPrompt},
		{name: "bug", prompt: bugPassPrompt},
		{name: "performance", prompt: performancePassPrompt},
	}
	if issueText != "" {
		passes = append(passes, pass{
			name:   "completeness",
			prompt: fmt.Sprintf(completenessPassPrompt, issueText),
		})
	}

	var analyses []domain.ReviewAnalysis
	for _, p := range passes {
		text, err := r.runPass(ctx, p, diff, workDir)
		if err != nil {
			return domain.ReviewAnalysis{}, fmt.Errorf("%s pass: %w", p.name, err)
		}
		analyses = append(analyses, r.Parse(ctx, text))
	}

	return domain.Merge(analyses...), nil
}

// runPass executes one review pass and returns its raw text.
func (r *Reviewer) runPass(ctx context.Context, p pass, diff, workDir string) (string, error) {
	prompt := p.prompt + "\n\nTHE CHANGE:\n\n```diff\n" + diff + "\n```"

	var text string
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		result, err := r.invoker.Invoke(ctx, agent.Request{
			Prompt:       prompt,
			WorkDir:      workDir,
			AllowedTools: readOnlyTools,
			Model:        r.model,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return retry.MarkTransient(fmt.Errorf("reviewer exited %d", result.ExitCode))
		}
		text = result.Text
		return nil
	})
	return text, err
}

// isCleanText reports whether short review text is a "no issues" reply.
func isCleanText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > cleanFastPathMaxLen {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range cleanPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Parse converts raw review text into a classified analysis. Short
// "no issues" replies resolve without another agent call; everything
// else is classified by the agent. A classification that fails after
// retries is never treated as clean: the raw review text comes back as
// a single should_fix item so the finding is not lost.
func (r *Reviewer) Parse(ctx context.Context, text string) domain.ReviewAnalysis {
	if isCleanText(text) {
		return domain.ReviewAnalysis{IsClean: true}
	}

	analysis, err := r.classify(ctx, text)
	if err != nil {
		r.logger.Logf(terminal.StyleWarning, "review classification failed, keeping raw finding: %v", err)
		return domain.ReviewAnalysis{
			IsClean: false,
			Items: []domain.ReviewItem{{
				Severity:    domain.SeverityShouldFix,
				Description: strings.TrimSpace(text),
			}},
		}
	}
	return analysis
}

func (r *Reviewer) classify(ctx context.Context, text string) (domain.ReviewAnalysis, error) {
	var analysis domain.ReviewAnalysis
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		result, err := r.invoker.Invoke(ctx, agent.Request{
			Prompt: classifyPrompt + text,
			Model:  r.model,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return retry.MarkTransient(fmt.Errorf("classifier exited %d", result.ExitCode))
		}

		raw, err := agent.ExtractJSON(result.Text)
		if err != nil {
			return retry.MarkTransient(fmt.Errorf("classifier output: %w", err))
		}
		var parsed domain.ReviewAnalysis
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return fmt.Errorf("classifier output: %w", err)
		}

		// Unknown severities degrade to should_fix rather than vanish.
		for i := range parsed.Items {
			if !parsed.Items[i].Severity.Valid() {
				parsed.Items[i].Severity = domain.SeverityShouldFix
			}
		}
		if len(parsed.Items) > 0 {
			parsed.IsClean = false
		}
		analysis = parsed
		return nil
	})
	return analysis, err
}

// DismissalClaim is one finding a fix agent declined to address.
type DismissalClaim struct {
	Finding       domain.ReviewItem
	Justification string
}

// VerifyDismissals runs claims past a skeptical verifier and returns
// the findings whose dismissal was NOT accepted; those stay
// outstanding. Any verification failure keeps every finding: a
// dismissal never succeeds by default.
func (r *Reviewer) VerifyDismissals(ctx context.Context, claims []DismissalClaim) []domain.ReviewItem {
	if len(claims) == 0 {
		return nil
	}

	keepAll := func() []domain.ReviewItem {
		kept := make([]domain.ReviewItem, len(claims))
		for i, c := range claims {
			kept[i] = c.Finding
		}
		return kept
	}

	type dismissalInput struct {
		ID            int    `json:"id"`
		Finding       string `json:"finding"`
		Justification string `json:"justification"`
	}
	inputs := make([]dismissalInput, len(claims))
	for i, c := range claims {
		inputs[i] = dismissalInput{
			ID:            i,
			Finding:       c.Finding.Description,
			Justification: c.Justification,
		}
	}
	payload, err := json.Marshal(map[string]any{"dismissals": inputs})
	if err != nil {
		return keepAll()
	}

	var accepted map[int]bool
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		result, err := r.invoker.Invoke(ctx, agent.Request{
			Prompt: dismissalPrompt + "\n\nINPUT JSON:\n" + string(payload) + "\n",
			Model:  r.model,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return retry.MarkTransient(fmt.Errorf("verifier exited %d", result.ExitCode))
		}

		raw, err := agent.ExtractJSON(result.Text)
		if err != nil {
			return retry.MarkTransient(fmt.Errorf("verifier output: %w", err))
		}
		var resp struct {
			Accept []int `json:"accept"`
		}
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return fmt.Errorf("verifier output: %w", err)
		}

		accepted = make(map[int]bool, len(resp.Accept))
		for _, id := range resp.Accept {
			accepted[id] = true
		}
		return nil
	})
	if err != nil {
		r.logger.Logf(terminal.StyleWarning, "dismissal verification failed, keeping all findings: %v", err)
		return keepAll()
	}

	var kept []domain.ReviewItem
	for i, c := range claims {
		if !accepted[i] {
			kept = append(kept, c.Finding)
		}
	}
	return kept
}
