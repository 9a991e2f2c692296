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
	"github.com/anthropics/agentic-quality-orchestrator/internal/fixer"
	"github.com/anthropics/agentic-quality-orchestrator/internal/git"
	"github.com/anthropics/agentic-quality-orchestrator/internal/github"
	"github.com/anthropics/agentic-quality-orchestrator/internal/retry"
	"github.com/anthropics/agentic-quality-orchestrator/internal/review"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
	"github.com/anthropics/agentic-quality-orchestrator/internal/ticket"
)

var (
	fixMaxIterations int
	fixOpenPR        bool
	fixModel         string
)

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <issue-id>",
		Short: "Drive one ticketed issue through fix and review cycles",
		Long: `Create an isolated worktree for the issue's fix branch, then loop:
apply a fix with the agent, review the accumulated diff with multiple
review passes, and feed remaining findings into the next attempt.

The session ends when the review is clean (suggestion-only findings
never force another attempt), the ticket disappears out of band, or
the iteration ceiling is hit. A session stopped at the ceiling keeps
its worktree for manual follow-up and is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: runFix,
	}

	cmd.Flags().IntVarP(&fixMaxIterations, "max-iterations", "n", 0,
		fmt.Sprintf("Fix attempt ceiling (default: %d)", config.DefaultMaxIterations))
	cmd.Flags().BoolVar(&fixOpenPR, "pr", false,
		"Push the fix branch and open a pull request when the session converges")
	cmd.Flags().StringVarP(&fixModel, "model", "m", "",
		"Model passed to the agent CLI (default: the CLI's own default)")

	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	issueID := args[0]

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

	invoker := agent.NewClaudeInvoker()
	if err := invoker.IsAvailable(); err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	if fixOpenPR {
		if err := github.IsAvailable(); err != nil {
			logger.Logf(terminal.StyleError, "--pr requires gh CLI: %v", err)
			return exitCode(domain.ExitError)
		}
	}

	maxIterations := fixMaxIterations
	if maxIterations <= 0 {
		maxIterations = cfg.MaxIterationsOrDefault()
	}
	model := fixModel
	if model == "" {
		model = cfg.ModelOrDefault()
	}

	policy := retry.NewPolicy(cfg.RetriesOrDefault(), cfg.RetryDelayOrDefault())
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Logf(terminal.StyleDim, "retrying in %s after transient failure: %v", delay, err)
	}

	tickets := ticket.NewDirStore(cfg.TicketsDirOrDefault())
	reviewer := review.New(invoker, policy, logger, model)
	records := fixer.NewRecordStore(cfg.StateDirOrDefault())
	session := fixer.NewSession(invoker, reviewer, tickets, records, policy, logger, maxIterations, model)

	spinCtx, spinCancel := context.WithCancel(ctx)
	spinDone := make(chan struct{})
	go func() {
		terminal.NewPhaseSpinner(fmt.Sprintf("Fix session for %s", issueID)).Run(spinCtx)
		close(spinDone)
	}()

	res, err := session.Run(ctx, issueID)
	spinCancel()
	<-spinDone
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Log("fix session interrupted", terminal.StyleWarning)
			return exitCode(domain.ExitInterrupted)
		}
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	switch res.Status {
	case domain.SessionAlreadyFixed:
		logger.Logf(terminal.StyleInfo, "issue %s already resolved", issueID)
	case domain.SessionIterationLimit:
		logger.Logf(terminal.StyleWarning, "issue %s hit the iteration ceiling after %d attempt(s); worktree: %s",
			issueID, res.Record.Iterations, res.Record.WorktreePath)
	case domain.SessionSuccess:
		logger.Logf(terminal.StyleSuccess, "issue %s fixed on branch %s after %d attempt(s)",
			issueID, res.Record.BranchName, res.Record.Iterations)
		if fixOpenPR {
			if err := openPR(ctx, session, res.Record, logger); err != nil {
				logger.Logf(terminal.StyleError, "%v", err)
				return exitCode(domain.ExitError)
			}
		}
	}

	return exitCode(domain.ExitOK)
}

func openPR(ctx context.Context, session *fixer.Session, rec *domain.FixRecord, logger *terminal.Logger) error {
	baseBranch, err := git.DefaultBranch(ctx, ".")
	if err != nil {
		return fmt.Errorf("resolving default branch: %w", err)
	}
	url, err := session.OpenPR(ctx, rec, baseBranch)
	if err != nil {
		return err
	}
	logger.Logf(terminal.StyleSuccess, "opened %s", url)
	return nil
}
