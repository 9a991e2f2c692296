package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/agentic-quality-orchestrator/internal/agent"
	"github.com/anthropics/agentic-quality-orchestrator/internal/config"
	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/pipeline"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/runstate"
	"github.com/anthropics/agentic-quality-orchestrator/internal/scheduler"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
	"github.com/anthropics/agentic-quality-orchestrator/internal/ticket"
)

var (
	scanConcurrency int
	scanResume      bool
	scanModel       string
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [agent...]",
		Short: "Run scan agents, validate findings, and file tickets",
		Long: `Run the named scan agents (or every configured agent when none are
named) concurrently. Each agent's candidate findings are validated in
skeptical batches; approved findings become tickets.

The run exits 0 even when individual agents fail; per-agent status is
reported in the summary. Use --resume to pick up an interrupted run.`,
		RunE: runScan,
	}

	cmd.Flags().IntVarP(&scanConcurrency, "concurrency", "c", 0,
		fmt.Sprintf("Max agents running at once (default: %d)", config.DefaultConcurrency))
	cmd.Flags().BoolVar(&scanResume, "resume", false,
		"Resume the most recent run, skipping agents that already completed")
	cmd.Flags().StringVarP(&scanModel, "model", "m", "",
		"Model passed to the agent CLI (default: the CLI's own default)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	if !terminal.IsStdoutTTY() {
		terminal.DisableColors()
	}
	logger := terminal.NewLogger()

	ctx, cancel := signalContext(logger)
	defer cancel()

	loaded, err := config.LoadFromDir(".")
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	for _, w := range loaded.Warnings {
		logger.Log(w, terminal.StyleWarning)
	}
	cfg := loaded.Config

	agentIDs := args
	if len(agentIDs) == 0 {
		agentIDs = cfg.AgentIDs()
	}
	if len(agentIDs) == 0 {
		logger.Logf(terminal.StyleError, "no agents configured; add an agents section to %s", config.ConfigFileName)
		return exitCode(domain.ExitError)
	}

	// Every requested agent must resolve before anything runs; a typo
	// in one name aborts the whole batch rather than failing mid-run.
	prompts := make(map[string]string, len(agentIDs))
	for _, id := range agentIDs {
		spec, err := cfg.Agent(id)
		if err != nil {
			var unknownErr *domain.UnknownAgentError
			if errors.As(err, &unknownErr) {
				logger.Logf(terminal.StyleError, "%v (configured: %v)", err, cfg.AgentIDs())
			} else {
				logger.Logf(terminal.StyleError, "%v", err)
			}
			return exitCode(domain.ExitError)
		}
		prompt, err := cfg.ResolvePrompt(spec)
		if err != nil {
			logger.Logf(terminal.StyleError, "agent %s: %v", id, err)
			return exitCode(domain.ExitError)
		}
		prompts[id] = prompt
	}

	invoker := agent.NewClaudeInvoker()
	if err := invoker.IsAvailable(); err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	concurrency := scanConcurrency
	if concurrency <= 0 {
		concurrency = cfg.ConcurrencyOrDefault()
	}
	model := scanModel
	if model == "" {
		model = cfg.ModelOrDefault()
	}

	store := runstate.NewStore(cfg.StateDirOrDefault())

	var run *domain.BatchRun
	skip := map[string]bool{}
	if scanResume {
		prior, err := store.LoadLatest()
		if err != nil {
			logger.Logf(terminal.StyleError, "nothing to resume: %v", err)
			return exitCode(domain.ExitError)
		}
		if prior.IsStale {
			logger.Logf(terminal.StyleWarning, "run %s started %s ago, results may be outdated",
				prior.RunID, terminal.FormatDuration(time.Since(prior.StartedAt)))
		}
		skip = runstate.SkipSet(prior)
		run = store.Reschedule(prior)
		logger.Logf(terminal.StyleInfo, "resuming run %s (%d of %d agents done)",
			run.RunID, len(skip), len(run.Agents))
	} else {
		run = store.Create(agentIDs, concurrency)
	}

	policy := retry.NewPolicy(cfg.RetriesOrDefault(), cfg.RetryDelayOrDefault())
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Logf(terminal.StyleDim, "retrying in %s after transient failure: %v", delay, err)
	}

	tickets := ticket.NewDirStore(cfg.TicketsDirOrDefault())
	runner := pipeline.New(invoker, tickets, policy, logger, cfg.ValidationBatchSizeOrDefault(), ".", model)

	agentRunner := func(ctx context.Context, agentID string) (*domain.ScanResult, error) {
		spec, err := cfg.Agent(agentID)
		if err != nil {
			return nil, err
		}
		outcome, err := runner.Run(ctx, spec, prompts[agentID])
		if err != nil {
			return nil, err
		}
		return outcome.Counts(), nil
	}

	sched := scheduler.New(store, agentRunner, logger, scheduler.Hooks{
		OnStart: func(agentID string) {
			logger.Logf(terminal.StyleDim, "agent %s started", agentID)
		},
		OnDone: func(task domain.AgentTask) {
			if task.Status == domain.TaskCompleted {
				logger.Logf(terminal.StyleSuccess, "agent %s completed", task.AgentID)
			}
		},
	})

	final, err := sched.RunBatch(ctx, run, skip)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Logf(terminal.StyleWarning, "run %s interrupted, resume with --resume", final.RunID)
			return exitCode(domain.ExitInterrupted)
		}
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	printScanSummary(final, skip)
	return exitCode(domain.ExitOK)
}

func printScanSummary(run *domain.BatchRun, skip map[string]bool) {
	sum := scheduler.Summarize(run, skip)
	width := terminal.ReportWidth()

	fmt.Println()
	fmt.Println(terminal.Ruler(width, "="))
	fmt.Printf("Run %s\n", run.RunID)
	fmt.Println(terminal.Ruler(width, "="))

	if len(sum.Skipped) > 0 {
		fmt.Printf("Skipped (already done): %v\n", sum.Skipped)
	}
	fmt.Printf("Agents: %d completed, %d failed\n", len(sum.Completed), len(sum.Failed))
	for _, id := range sum.Failed {
		task := run.Task(id)
		fmt.Printf("  %s!%s %s: %s\n", terminal.Color(terminal.Red), terminal.Color(terminal.Reset), id, task.Error)
	}

	fmt.Println(terminal.Ruler(width, "-"))
	fmt.Printf("Findings: %d candidates, %d approved, %d rejected\n",
		sum.Candidates, sum.Approved, sum.Rejected)
	if len(sum.Tickets) > 0 {
		fmt.Println("Tickets:")
		for _, ref := range sum.Tickets {
			fmt.Printf("  %s\n", ref)
		}
	}

	if run.CompletedAt != nil {
		fmt.Printf("Elapsed: %s\n", terminal.FormatDuration(run.CompletedAt.Sub(run.StartedAt)))
	}
	fmt.Println(terminal.Ruler(width, "="))
}
