package review

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/agentic-quality-orchestrator/internal/agent"
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
)

// scriptedInvoker answers prompts by matching a marker substring.
type scriptedInvoker struct {
	handle func(req agent.Request) (*agent.Result, error)
	calls  []string
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.Result, error) {
	s.calls = append(s.calls, req.Prompt)
	return s.handle(req)
}

func newTestReviewer(inv agent.Invoker) *Reviewer {
	r := New(inv, retry.NewPolicy(1, time.Millisecond), terminal.NewLogger(), "")
	r.diff = func(ctx context.Context, baseRef, workDir string) (string, error) {
		return "diff --git a/x.go b/x.go\n+changed\n", nil
	}
	return r
}

func TestParse_CleanFastPath(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		t.Error("fast path must not call the agent")
		return &agent.Result{}, nil
	}}
	r := newTestReviewer(inv)

	tests := []string{
		"LGTM, no issues found.",
		"No issues.",
		"The code looks clean.",
		"  looks good  ",
	}
	for _, text := range tests {
		analysis := r.Parse(context.Background(), text)
		if !analysis.IsClean {
			t.Errorf("Parse(%q).IsClean = false, want true", text)
		}
		if len(analysis.Items) != 0 {
			t.Errorf("Parse(%q) produced items: %+v", text, analysis.Items)
		}
	}
}

func TestParse_LongTextSkipsFastPath(t *testing.T) {
	long := "There are no issues with the naming, however the function Foo " +
		strings.Repeat("leaks a file handle when the early return on line 42 fires. ", 5)

	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: `{"is_clean": false, "items": [
			{"severity": "must_fix", "description": "file handle leak", "file": "foo.go"}
		]}`}, nil
	}}
	r := newTestReviewer(inv)

	analysis := r.Parse(context.Background(), long)
	if analysis.IsClean {
		t.Fatal("long review mentioning a leak must not be clean")
	}
	if len(inv.calls) == 0 {
		t.Error("long text should go through classification")
	}
	if len(analysis.Items) != 1 || analysis.Items[0].Severity != domain.SeverityMustFix {
		t.Errorf("items = %+v", analysis.Items)
	}
}

func TestParse_ClassificationFailureIsNotClean(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: "I refuse to answer in JSON."}, nil
	}}
	r := newTestReviewer(inv)

	raw := "The error from Close is discarded which can hide write failures on NFS mounts and similar."
	analysis := r.Parse(context.Background(), raw)

	if analysis.IsClean {
		t.Fatal("classification failure must never yield a clean analysis")
	}
	if len(analysis.Items) != 1 {
		t.Fatalf("items = %+v, want one synthetic finding", analysis.Items)
	}
	item := analysis.Items[0]
	if item.Severity != domain.SeverityShouldFix {
		t.Errorf("severity = %s, want should_fix", item.Severity)
	}
	if !strings.Contains(item.Description, "Close is discarded") {
		t.Errorf("synthetic finding lost the raw text: %q", item.Description)
	}
}

func TestParse_UnknownSeverityDegrades(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: `{"is_clean": false, "items": [
			{"severity": "catastrophic", "description": "x"}
		]}`}, nil
	}}
	r := newTestReviewer(inv)

	analysis := r.Parse(context.Background(), "Some long review text that is definitely not a clean marker and describes a problem in detail beyond the threshold for the fast path, so it gets classified properly.")
	if len(analysis.Items) != 1 || analysis.Items[0].Severity != domain.SeverityShouldFix {
		t.Errorf("items = %+v, want degraded should_fix", analysis.Items)
	}
}

func TestReview_RunsThreePassesWithoutIssueText(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: "No issues found."}, nil
	}}
	r := newTestReviewer(inv)

	analysis, err := r.Review(context.Background(), "/tmp/wt", "main", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !analysis.IsClean {
		t.Error("all-clean passes should merge clean")
	}
	if len(inv.calls) != 3 {
		t.Errorf("calls = %d, want 3 passes", len(inv.calls))
	}
	for _, prompt := range inv.calls {
		if !strings.Contains(prompt, "```diff") {
			t.Error("pass prompt missing the diff")
		}
	}
}

func TestReview_CompletenessPassNeedsIssueText(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: "No issues found."}, nil
	}}
	r := newTestReviewer(inv)

	if _, err := r.Review(context.Background(), "/tmp/wt", "main", "The cache grows without bound."); err != nil {
		t.Fatal(err)
	}
	if len(inv.calls) != 4 {
		t.Fatalf("calls = %d, want 4 passes with issue text", len(inv.calls))
	}
	if !strings.Contains(inv.calls[3], "cache grows without bound") {
		t.Error("completeness pass missing the issue text")
	}
}

func TestReview_MergedNotCleanWhenOnePassFindsIssues(t *testing.T) {
	call := 0
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		if strings.Contains(req.Prompt, "Bug Hunt Review") {
			call++
			return &agent.Result{Text: "The retry loop never increments its counter, so it spins forever when the backend keeps failing. This is a concrete infinite loop on the error path."}, nil
		}
		if strings.Contains(req.Prompt, "Review Classifier") {
			return &agent.Result{Text: `{"is_clean": false, "items": [
				{"severity": "must_fix", "description": "infinite retry loop"}
			]}`}, nil
		}
		return &agent.Result{Text: "No issues found."}, nil
	}}
	r := newTestReviewer(inv)

	analysis, err := r.Review(context.Background(), "/tmp/wt", "main", "")
	if err != nil {
		t.Fatal(err)
	}
	if analysis.IsClean {
		t.Error("one dirty pass must make the merge dirty")
	}
	if !analysis.HasActionableItems() {
		t.Error("must_fix finding should be actionable")
	}
}

func TestVerifyDismissals_AcceptsSome(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: `{"accept": [0]}`}, nil
	}}
	r := newTestReviewer(inv)

	claims := []DismissalClaim{
		{Finding: domain.ReviewItem{Severity: domain.SeverityShouldFix, Description: "wrong file cited"}, Justification: "the cited file does not exist"},
		{Finding: domain.ReviewItem{Severity: domain.SeverityMustFix, Description: "nil deref"}, Justification: "too hard to fix"},
	}

	kept := r.VerifyDismissals(context.Background(), claims)
	if len(kept) != 1 {
		t.Fatalf("kept = %+v, want only the rejected dismissal", kept)
	}
	if kept[0].Description != "nil deref" {
		t.Errorf("kept = %+v", kept[0])
	}
}

func TestVerifyDismissals_FailureKeepsAll(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		return &agent.Result{Text: "no json here"}, nil
	}}
	r := newTestReviewer(inv)

	claims := []DismissalClaim{
		{Finding: domain.ReviewItem{Description: "a"}, Justification: "j1"},
		{Finding: domain.ReviewItem{Description: "b"}, Justification: "j2"},
	}

	kept := r.VerifyDismissals(context.Background(), claims)
	if len(kept) != 2 {
		t.Errorf("kept = %+v, want every finding on verification failure", kept)
	}
}

func TestVerifyDismissals_Empty(t *testing.T) {
	inv := &scriptedInvoker{handle: func(req agent.Request) (*agent.Result, error) {
		t.Error("no claims should mean no agent call")
		return &agent.Result{}, nil
	}}
	r := newTestReviewer(inv)

	if kept := r.VerifyDismissals(context.Background(), nil); kept != nil {
		t.Errorf("kept = %+v, want nil", kept)
	}
}
