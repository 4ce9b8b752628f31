// Package orchestrate executes one request's task graph and merges the
// outputs into a single response.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yoonhw/jibsa/internal/capability"
	"github.com/yoonhw/jibsa/internal/events"
	"github.com/yoonhw/jibsa/internal/task"
)

// parallelLimit bounds the concurrent dependency-free batch.
const parallelLimit = 4

// ErrGraphStalled is returned when pending tasks remain but none are
// ready, which means an unresolved dependency survived validation.
var ErrGraphStalled = errors.New("task graph stalled: unresolved dependencies")

// Scheduler drives a task graph to completion: ready-set computation,
// bounded-concurrency dispatch, per-capability timeouts, and failure
// isolation at task granularity.
type Scheduler struct {
	registry *capability.Registry
	bus      *events.Bus

	mu sync.Mutex // guards task status transitions across dispatch goroutines
}

// NewScheduler creates a Scheduler. bus may be nil to disable telemetry.
func NewScheduler(registry *capability.Registry, bus *events.Bus) *Scheduler {
	return &Scheduler{registry: registry, bus: bus}
}

// Run executes the graph until every task is terminal. Dependency-free
// ready tasks run as a concurrent batch; dependency-bearing tasks run
// sequentially, interleaved with the batch. A failed task never aborts the
// run; only a stalled graph does.
func (s *Scheduler) Run(ctx context.Context, g *task.Graph, sessionID string) ([]*task.Task, error) {
	for {
		s.mu.Lock()
		pending := g.Pending()
		ready := g.Ready()
		s.mu.Unlock()

		if pending == 0 {
			return g.Tasks(), nil
		}
		if len(ready) == 0 {
			s.failRemaining(g)
			return g.Tasks(), ErrGraphStalled
		}

		// Priority orders dispatch within the ready set only; the stable
		// sort keeps insertion order between equal priorities.
		sort.SliceStable(ready, func(i, j int) bool {
			return ready[i].Priority < ready[j].Priority
		})

		var batch, sequential []*task.Task
		for _, t := range ready {
			if len(t.DependsOn) == 0 {
				batch = append(batch, t)
			} else {
				sequential = append(sequential, t)
			}
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, parallelLimit)
		for _, t := range batch {
			s.markRunning(t, sessionID)
			wg.Add(1)
			go func(t *task.Task) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				s.execute(ctx, t, sessionID)
			}(t)
		}

		// Dependency-bearing tasks run on this goroutine while the batch is
		// in flight; their predecessors are already terminal.
		for _, t := range sequential {
			s.markRunning(t, sessionID)
			s.execute(ctx, t, sessionID)
		}
		wg.Wait()
	}
}

func (s *Scheduler) markRunning(t *task.Task, sessionID string) {
	s.mu.Lock()
	t.Status = task.StatusRunning
	t.StartedAt = time.Now()
	s.mu.Unlock()
	s.publish(events.TaskPayload{
		TaskID:     t.ID,
		Capability: string(t.Capability),
		Status:     string(task.StatusRunning),
	}, sessionID)
}

// execute invokes the provider under the capability timeout and records
// the terminal state. Provider panics and errors become failed tasks.
func (s *Scheduler) execute(ctx context.Context, t *task.Task, sessionID string) {
	provider, ok := s.registry.Get(t.Capability)
	if !ok {
		s.finish(t, nil, fmt.Errorf("no provider for capability %q", t.Capability), sessionID)
		return
	}

	timeout := t.Capability.Timeout()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *task.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		res, err := provider.Execute(execCtx, t)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		s.finish(t, out.result, out.err, sessionID)
	case <-execCtx.Done():
		s.finish(t, nil, fmt.Errorf("%s task timed out after %s", t.Capability, timeout), sessionID)
	}
}

func (s *Scheduler) finish(t *task.Task, result *task.Result, err error, sessionID string) {
	s.mu.Lock()
	t.CompletedAt = time.Now()
	if err != nil {
		t.Status = task.StatusFailed
		t.Error = err.Error()
	} else {
		t.Status = task.StatusCompleted
		t.Result = result
	}
	status := t.Status
	s.mu.Unlock()

	if err != nil {
		slog.Warn("scheduler: task failed", "task_id", t.ID, "capability", t.Capability, "error", err)
	} else {
		slog.Debug("scheduler: task completed", "task_id", t.ID, "capability", t.Capability)
	}
	s.publish(events.TaskPayload{
		TaskID:     t.ID,
		Capability: string(t.Capability),
		Status:     string(status),
		Error:      t.Error,
		Duration:   t.CompletedAt.Sub(t.StartedAt),
	}, sessionID)
}

// failRemaining marks every still-pending task failed with a graph error.
func (s *Scheduler) failRemaining(g *task.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range g.Tasks() {
		if t.Status == task.StatusPending {
			t.Status = task.StatusFailed
			t.Error = "cyclic or unresolved dependency"
			t.CompletedAt = time.Now()
		}
	}
}

func (s *Scheduler) publish(p events.EventPayload, sessionID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewTypedEventWithSession(events.SourceScheduler, p, sessionID))
}
