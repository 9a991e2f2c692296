// Package runstate persists batch run state as JSON documents, one file
// per run, so interrupted batches can be resumed.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

// StaleAfter is the age past which a persisted run is flagged as stale.
// Stale runs can still be resumed; the flag exists so the CLI can warn
// that the repository has likely moved on since the scan started.
const StaleAfter = 24 * time.Hour

// Store reads and writes run state files under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Create builds a new BatchRun with every requested agent pending.
func (s *Store) Create(agentIDs []string, concurrency int) *domain.BatchRun {
	tasks := make([]domain.AgentTask, 0, len(agentIDs))
	for _, id := range agentIDs {
		tasks = append(tasks, domain.AgentTask{
			AgentID: id,
			Status:  domain.TaskPending,
		})
	}
	return &domain.BatchRun{
		RunID:           uuid.NewString(),
		RequestedAgents: append([]string(nil), agentIDs...),
		Agents:          tasks,
		StartedAt:       s.now().UTC(),
		Concurrency:     concurrency,
	}
}

// Update returns a copy of run with the given agent's task transitioned
// to status. The input run is never mutated; callers replace their
// pointer with the returned value. When the transition leaves no
// unfinished tasks, CompletedAt is stamped on the copy.
func (s *Store) Update(run *domain.BatchRun, agentID string, status domain.TaskStatus, errMsg string, result *domain.ScanResult) (*domain.BatchRun, error) {
	updated := clone(run)

	task := updated.Task(agentID)
	if task == nil {
		return nil, fmt.Errorf("run %s has no task for agent %q", run.RunID, agentID)
	}
	if !task.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("agent %q: invalid transition %s -> %s", agentID, task.Status, status)
	}

	task.Status = status
	task.Error = errMsg
	task.Result = result

	if !updated.Unfinished() {
		done := s.now().UTC()
		updated.CompletedAt = &done
	}

	return updated, nil
}

// Reschedule returns a copy of run with every errored task reset to
// pending so a resume can retry it. Completed tasks are untouched.
func (s *Store) Reschedule(run *domain.BatchRun) *domain.BatchRun {
	updated := clone(run)
	for i := range updated.Agents {
		if updated.Agents[i].Status == domain.TaskError || updated.Agents[i].Status == domain.TaskRunning {
			updated.Agents[i].Status = domain.TaskPending
			updated.Agents[i].Error = ""
			updated.Agents[i].Result = nil
		}
	}
	updated.CompletedAt = nil
	return updated
}

// SkipSet returns the agent IDs a resume should not re-run. Only
// completed tasks are skipped; errored tasks get another chance.
func SkipSet(run *domain.BatchRun) map[string]bool {
	skip := make(map[string]bool)
	for _, task := range run.Agents {
		if task.Status == domain.TaskCompleted {
			skip[task.AgentID] = true
		}
	}
	return skip
}

// Save writes the run to <dir>/<run-id>.json atomically, using a temp
// file and rename so a crash never leaves a truncated document.
func (s *Store) Save(run *domain.BatchRun) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	path := s.path(run.RunID)
	tmp, err := os.CreateTemp(s.dir, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write run state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace run state file: %w", err)
	}
	return nil
}

// Load reads the run with the given ID. The returned run's IsStale flag
// is set when the run started more than StaleAfter ago.
func (s *Store) Load(runID string) (*domain.BatchRun, error) {
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var run domain.BatchRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("corrupt run state file for %s: %w", runID, err)
	}

	run.IsStale = s.now().Sub(run.StartedAt) > StaleAfter
	return &run, nil
}

// LoadLatest returns the most recently started run, or an error when the
// state directory holds none.
func (s *Store) LoadLatest() (*domain.BatchRun, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no runs found in %s", s.dir)
		}
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}

	var runs []*domain.BatchRun
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		run, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// Skip unreadable entries; the latest valid run still resolves.
			continue
		}
		runs = append(runs, run)
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs found in %s", s.dir)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs[0], nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// clone deep-copies a run so updates never alias the caller's value.
func clone(run *domain.BatchRun) *domain.BatchRun {
	out := *run
	out.RequestedAgents = append([]string(nil), run.RequestedAgents...)
	out.Agents = make([]domain.AgentTask, len(run.Agents))
	for i, task := range run.Agents {
		out.Agents[i] = task
		if task.Result != nil {
			res := *task.Result
			res.Tickets = append([]string(nil), task.Result.Tickets...)
			out.Agents[i].Result = &res
		}
	}
	if run.CompletedAt != nil {
		done := *run.CompletedAt
		out.CompletedAt = &done
	}
	return &out
}
