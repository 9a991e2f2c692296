package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/agentic-quality-orchestrator/internal/agent"
	"github.com/anthropics/agentic-quality-orchestrator/internal/config"
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
	"github.com/anthropics/agentic-quality-orchestrator/internal/ticket"
)

// fakeInvoker routes scan and validation prompts to scripted handlers.
type fakeInvoker struct {
	onScan     func(call int) (*agent.Result, error)
	onValidate func(call int, prompt string) (*agent.Result, error)

	scanCalls     int
	validateCalls int
}

func (f *fakeInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.Result, error) {
	if strings.Contains(req.Prompt, "Candidate Issue Validator") {
		f.validateCalls++
		return f.onValidate(f.validateCalls, req.Prompt)
	}
	f.scanCalls++
	return f.onScan(f.scanCalls)
}

func text(s string) (*agent.Result, error) {
	return &agent.Result{Text: s}, nil
}

func newTestRunner(t *testing.T, inv agent.Invoker, batchSize int) (*Runner, ticket.Store) {
	t.Helper()
	store := ticket.NewDirStore(t.TempDir())
	policy := retry.NewPolicy(1, time.Millisecond)
	return New(inv, store, policy, terminal.NewLogger(), batchSize, "", ""), store
}

func TestRun_HappyPath(t *testing.T) {
	inv := &fakeInvoker{
		onScan: func(int) (*agent.Result, error) {
			return text(`{"candidates": [
				{"id": "dup-a", "title": "Duplicated parser", "file": "a.go", "line": 1, "description": "copy of b.go"},
				{"id": "dup-b", "title": "Style nit", "file": "b.go", "line": 2, "description": "naming"}
			]}`)
		},
		onValidate: func(_ int, prompt string) (*agent.Result, error) {
			return text(`{"votes": [
				{"id": "dup-a", "approve": true, "reason": "real duplication"},
				{"id": "dup-b", "approve": false, "reason": "style preference"}
			]}`)
		},
	}
	r, store := newTestRunner(t, inv, 5)

	out, err := r.Run(context.Background(), config.AgentSpec{ID: "dup-check"}, "Find duplication.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(out.Candidates))
	}
	if len(out.Approved) != 1 || out.Approved[0].ID != "dup-a" {
		t.Fatalf("approved = %+v", out.Approved)
	}
	if len(out.Rejected) != 1 || out.Rejected[0].ID != "dup-b" {
		t.Errorf("rejected = %+v", out.Rejected)
	}

	// Approved issue got a ticket.
	if out.Approved[0].TicketRef == "" {
		t.Error("approved issue missing ticket ref")
	}
	ok, err := store.Exists("dup-a")
	if err != nil || !ok {
		t.Errorf("ticket for dup-a should exist, ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Exists("dup-b"); ok {
		t.Error("rejected issue should not get a ticket")
	}

	counts := out.Counts()
	if counts.Candidates != 2 || counts.Approved != 1 || counts.Rejected != 1 {
		t.Errorf("counts = %+v", counts)
	}
	if len(counts.Tickets) != 1 || counts.Tickets[0] != "dup-a" {
		t.Errorf("tickets = %v", counts.Tickets)
	}
}

func TestRun_ZeroCandidatesSkipsValidation(t *testing.T) {
	inv := &fakeInvoker{
		onScan: func(int) (*agent.Result, error) {
			return text(`{"candidates": []}`)
		},
		onValidate: func(int, string) (*agent.Result, error) {
			t.Error("validation must not run for an empty scan")
			return text(`{"votes": []}`)
		},
	}
	r, _ := newTestRunner(t, inv, 5)

	out, err := r.Run(context.Background(), config.AgentSpec{ID: "a"}, "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Candidates) != 0 || len(out.Approved) != 0 || len(out.Rejected) != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if inv.validateCalls != 0 {
		t.Errorf("validateCalls = %d, want 0", inv.validateCalls)
	}
}

func TestRun_ScanRetriesMalformedOutput(t *testing.T) {
	inv := &fakeInvoker{
		onScan: func(call int) (*agent.Result, error) {
			if call == 1 {
				return text("Sorry, here is my analysis in prose.")
			}
			return text(`{"candidates": []}`)
		},
	}
	r, _ := newTestRunner(t, inv, 5)

	_, err := r.Run(context.Background(), config.AgentSpec{ID: "a"}, "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.scanCalls != 2 {
		t.Errorf("scanCalls = %d, want 2 (one retry)", inv.scanCalls)
	}
}

func TestRun_ScanFailsAfterRetries(t *testing.T) {
	boom := errors.New("read tcp: connection reset by peer")
	inv := &fakeInvoker{
		onScan: func(int) (*agent.Result, error) {
			return nil, boom
		},
	}
	r, _ := newTestRunner(t, inv, 5)

	_, err := r.Run(context.Background(), config.AgentSpec{ID: "a"}, "p")
	if err == nil {
		t.Fatal("expected error")
	}
	// Initial attempt + one retry under the test policy.
	if inv.scanCalls != 2 {
		t.Errorf("scanCalls = %d, want 2", inv.scanCalls)
	}
}

func TestRun_ValidationBatching(t *testing.T) {
	scanJSON := `{"candidates": [
		{"id": "c1", "title": "t1"}, {"id": "c2", "title": "t2"},
		{"id": "c3", "title": "t3"}, {"id": "c4", "title": "t4"},
		{"id": "c5", "title": "t5"}
	]}`

	inv := &fakeInvoker{
		onScan: func(int) (*agent.Result, error) { return text(scanJSON) },
		onValidate: func(call int, prompt string) (*agent.Result, error) {
			// Approve everything present in this batch.
			var votes []string
			for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
				if strings.Contains(prompt, `"`+id+`"`) {
					votes = append(votes, `{"id": "`+id+`", "approve": true}`)
				}
			}
			return text(`{"votes": [` + strings.Join(votes, ",") + `]}`)
		},
	}
	r, _ := newTestRunner(t, inv, 2)

	out, err := r.Run(context.Background(), config.AgentSpec{ID: "a"}, "p")
	if err != nil {
		t.Fatal(err)
	}
	// 5 candidates at batch size 2 means 3 sequential calls.
	if inv.validateCalls != 3 {
		t.Errorf("validateCalls = %d, want 3", inv.validateCalls)
	}
	if len(out.Approved) != 5 {
		t.Errorf("approved = %d, want 5", len(out.Approved))
	}
}

func TestRun_BatchFailureRejectsOnlyThatBatch(t *testing.T) {
	scanJSON := `{"candidates": [
		{"id": "c1", "title": "t1"}, {"id": "c2", "title": "t2"},
		{"id": "c3", "title": "t3"}, {"id": "c4", "title": "t4"}
	]}`

	inv := &fakeInvoker{
		onScan: func(int) (*agent.Result, error) { return text(scanJSON) },
		onValidate: func(call int, prompt string) (*agent.Result, error) {
			// First batch (c1, c2) never returns JSON; retries included.
			if strings.Contains(prompt, `"c1"`) {
				return text("I cannot evaluate these.")
			}
			return text(`{"votes": [
				{"id": "c3", "approve": true},
				{"id": "c4", "approve": true}
			]}`)
		},
	}
	r, _ := newTestRunner(t, inv, 2)

	out, err := r.Run(context.Background(), config.AgentSpec{ID: "a"}, "p")
	if err != nil {
		t.Fatalf("batch validation failure must not fail the pipeline: %v", err)
	}

	if len(out.Approved) != 2 {
		t.Fatalf("approved = %+v, want c3 and c4", out.Approved)
	}
	for _, a := range out.Approved {
		if a.ID == "c1" || a.ID == "c2" {
			t.Errorf("candidate %s from failed batch must be rejected", a.ID)
		}
	}
	if len(out.Rejected) != 2 {
		t.Errorf("rejected = %+v", out.Rejected)
	}
}

func TestArbitrate_MissingVoteRejects(t *testing.T) {
	candidates := []domain.CandidateIssue{
		{ID: "voted"},
		{ID: "forgotten"},
	}
	votes := []domain.Vote{{IssueID: "voted", Approve: true}}

	approved, rejected := Arbitrate(candidates, votes)
	if len(approved) != 1 || approved[0].ID != "voted" {
		t.Errorf("approved = %+v", approved)
	}
	if len(rejected) != 1 || rejected[0].ID != "forgotten" {
		t.Errorf("rejected = %+v", rejected)
	}
}

func TestParseScanOutput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name:  "contract object",
			input: `{"candidates": [{"id": "a", "title": "t"}]}`,
			want:  1,
		},
		{
			name:  "bare array accepted",
			input: `[{"id": "a", "title": "t"}, {"id": "b", "title": "u"}]`,
			want:  2,
		},
		{
			name:  "fenced output",
			input: "```json\n{\"candidates\": []}\n```",
			want:  0,
		},
		{
			name:    "prose only",
			input:   "No JSON here.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScanOutput(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !retry.IsTransient(err) {
					t.Errorf("parse errors should be transient, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("candidates = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		agentID string
		title   string
		idx     int
		want    string
	}{
		{"dup", "Mutex copied by value", 0, "dup-mutex-copied-by-value"},
		{"dup", "", 3, "dup-3"},
		{"dup", "!!!", 1, "dup-1"},
	}
	for _, tt := range tests {
		if got := slugify(tt.agentID, tt.title, tt.idx); got != tt.want {
			t.Errorf("slugify(%q, %q, %d) = %q, want %q", tt.agentID, tt.title, tt.idx, got, tt.want)
		}
	}
}
