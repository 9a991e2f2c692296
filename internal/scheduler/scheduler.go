// Package scheduler executes a batch of agent scan tasks with bounded
// concurrency, persisting run state after every task transition.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/runstate"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
)

// AgentRunner executes one agent's full scan pipeline and returns its
// result. The scheduler treats it as a black box.
type AgentRunner func(ctx context.Context, agentID string) (*domain.ScanResult, error)

// Hooks observe task lifecycle events. Both callbacks are invoked
// synchronously under the scheduler's state lock, so they see a
// consistent run state and must return quickly.
type Hooks struct {
	OnStart func(agentID string)
	OnDone  func(task domain.AgentTask)
}

// Scheduler drains a batch run's pending tasks through worker goroutines.
type Scheduler struct {
	store  *runstate.Store
	runner AgentRunner
	logger *terminal.Logger
	hooks  Hooks
}

// New creates a scheduler that persists via store and executes tasks
// with runner.
func New(store *runstate.Store, runner AgentRunner, logger *terminal.Logger, hooks Hooks) *Scheduler {
	return &Scheduler{
		store:  store,
		runner: runner,
		logger: logger,
		hooks:  hooks,
	}
}

// RunBatch executes every pending task in run, skipping agents in skip,
// and returns the final run state. Task failures are captured in the
// state rather than returned; the error return covers scheduler-level
// problems such as persistence failures.
//
// The input run is never mutated. State is saved after every
// transition, so a crash at any point leaves a resumable file.
func (s *Scheduler) RunBatch(ctx context.Context, run *domain.BatchRun, skip map[string]bool) (*domain.BatchRun, error) {
	var queue []string
	for _, task := range run.Agents {
		if task.Status == domain.TaskPending && !skip[task.AgentID] {
			queue = append(queue, task.AgentID)
		}
	}

	state := run
	if err := s.store.Save(state); err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		return state, nil
	}

	spinner := terminal.NewSpinner(len(queue))
	spinnerCtx, spinnerCancel := context.WithCancel(context.Background())
	spinnerDone := make(chan struct{})
	go func() {
		spinner.Run(spinnerCtx)
		close(spinnerDone)
	}()
	defer func() {
		spinnerCancel()
		<-spinnerDone
	}()

	// Buffered channel as the claim queue: each worker draws the next
	// agent ID exactly once.
	claims := make(chan string, len(queue))
	for _, id := range queue {
		claims <- id
	}
	close(claims)

	workers := run.Concurrency
	if workers <= 0 || workers > len(queue) {
		workers = len(queue)
	}

	// mu serializes every read-update-persist cycle on state.
	var mu sync.Mutex
	var saveErr error

	transition := func(agentID string, status domain.TaskStatus, errMsg string, result *domain.ScanResult) {
		mu.Lock()
		defer mu.Unlock()

		next, err := s.store.Update(state, agentID, status, errMsg, result)
		if err != nil {
			// Transition violations indicate a scheduler bug; surface loudly.
			if saveErr == nil {
				saveErr = err
			}
			return
		}
		state = next
		if err := s.store.Save(state); err != nil && saveErr == nil {
			saveErr = err
		}

		switch status {
		case domain.TaskRunning:
			if s.hooks.OnStart != nil {
				s.hooks.OnStart(agentID)
			}
		case domain.TaskCompleted, domain.TaskError:
			if s.hooks.OnDone != nil {
				if task := state.Task(agentID); task != nil {
					s.hooks.OnDone(*task)
				}
			}
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for agentID := range claims {
				if ctx.Err() != nil {
					// Leave the task pending so a resume picks it up.
					continue
				}

				transition(agentID, domain.TaskRunning, "", nil)
				result, err := s.runTask(ctx, agentID)
				if err != nil {
					s.logger.Logf(terminal.StyleWarning, "agent %s failed: %v", agentID, err)
					transition(agentID, domain.TaskError, err.Error(), nil)
				} else {
					transition(agentID, domain.TaskCompleted, "", result)
				}
				spinner.Completed().Add(1)
			}
		}()
	}
	wg.Wait()

	if saveErr != nil {
		return state, saveErr
	}
	return state, ctx.Err()
}

// runTask invokes the runner with panic recovery so one misbehaving
// agent cannot take down the whole batch.
func (s *Scheduler) runTask(ctx context.Context, agentID string) (result *domain.ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("agent %s panicked: %v", agentID, r)
		}
	}()
	return s.runner(ctx, agentID)
}
