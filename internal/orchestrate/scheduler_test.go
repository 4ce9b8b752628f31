package orchestrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yoonhw/jibsa/internal/capability"
	"github.com/yoonhw/jibsa/internal/task"
)

// fakeProvider runs a scripted function for one capability.
type fakeProvider struct {
	cap task.Capability
	fn  func(ctx context.Context, t *task.Task) (*task.Result, error)
}

func (p *fakeProvider) Capability() task.Capability { return p.cap }

func (p *fakeProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	return p.fn(ctx, t)
}

// callLog records execution order across goroutines.
type callLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *callLog) add(id string) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
}

func (l *callLog) index(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, got := range l.ids {
		if got == id {
			return i
		}
	}
	return -1
}

func newTestRegistry(t *testing.T, providers ...capability.Provider) *capability.Registry {
	t.Helper()
	r, err := capability.NewRegistry(providers...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func graphOf(t *testing.T, tasks ...*task.Task) *task.Graph {
	t.Helper()
	g, err := task.NewGraph(tasks)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	return g
}

func okProvider(c task.Capability, log *callLog) *fakeProvider {
	return &fakeProvider{cap: c, fn: func(_ context.Context, t *task.Task) (*task.Result, error) {
		log.add(t.ID)
		return &task.Result{Text: string(c) + " done"}, nil
	}}
}

func TestRunRespectsDependencyOrder(t *testing.T) {
	log := &callLog{}
	reg := newTestRegistry(t,
		okProvider(task.CapRetrieval, log),
		okProvider(task.CapAnalysis, log),
	)
	s := NewScheduler(reg, nil)

	a := task.New(task.CapRetrieval, "", nil, task.PriorityHigh)
	b := task.New(task.CapAnalysis, "", nil, task.PriorityMedium, a.ID)

	terminal, err := s.Run(context.Background(), graphOf(t, a, b), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, tk := range terminal {
		if tk.Status != task.StatusCompleted {
			t.Errorf("task %s status = %s", tk.ID, tk.Status)
		}
	}
	if log.index(a.ID) > log.index(b.ID) {
		t.Errorf("dependency ran after dependent: %v", log.ids)
	}
	if b.Result == nil || b.Result.Text != "analysis done" {
		t.Errorf("dependent result = %+v", b.Result)
	}
}

func TestRunExecutesIndependentTasksConcurrently(t *testing.T) {
	// Two tasks block until both have started, which only resolves if the
	// scheduler overlaps dependency-free tasks.
	started := make(chan string, 2)
	release := make(chan struct{})
	var once sync.Once

	block := func(_ context.Context, tk *task.Task) (*task.Result, error) {
		started <- tk.ID
		if len(started) == 2 {
			once.Do(func() { close(release) })
		}
		<-release
		return &task.Result{Text: "ok"}, nil
	}
	reg := newTestRegistry(t,
		&fakeProvider{cap: task.CapRetrieval, fn: block},
		&fakeProvider{cap: task.CapSavedList, fn: block},
	)
	s := NewScheduler(reg, nil)

	a := task.New(task.CapRetrieval, "", nil, task.PriorityHigh)
	b := task.New(task.CapSavedList, "", nil, task.PriorityHigh)

	terminal, err := s.Run(context.Background(), graphOf(t, a, b), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, tk := range terminal {
		if tk.Status != task.StatusCompleted {
			t.Errorf("task %s status = %s", tk.ID, tk.Status)
		}
	}
}

func TestRunFailedPredecessorStillRunsDependents(t *testing.T) {
	log := &callLog{}
	reg := newTestRegistry(t,
		&fakeProvider{cap: task.CapRetrieval, fn: func(context.Context, *task.Task) (*task.Result, error) {
			return nil, errors.New("search backend down")
		}},
		okProvider(task.CapAnalysis, log),
	)
	s := NewScheduler(reg, nil)

	a := task.New(task.CapRetrieval, "", nil, task.PriorityHigh)
	b := task.New(task.CapAnalysis, "", nil, task.PriorityMedium, a.ID)

	_, err := s.Run(context.Background(), graphOf(t, a, b), "")
	if err != nil {
		t.Fatalf("a task failure must not abort the run: %v", err)
	}
	if a.Status != task.StatusFailed {
		t.Errorf("a status = %s", a.Status)
	}
	if b.Status != task.StatusCompleted {
		t.Errorf("dependent of failed task must still run, status = %s", b.Status)
	}
}

func TestRunIsolatesProviderPanic(t *testing.T) {
	log := &callLog{}
	reg := newTestRegistry(t,
		&fakeProvider{cap: task.CapRetrieval, fn: func(context.Context, *task.Task) (*task.Result, error) {
			panic("unexpected state")
		}},
		okProvider(task.CapConversational, log),
	)
	s := NewScheduler(reg, nil)

	a := task.New(task.CapRetrieval, "", nil, task.PriorityHigh)
	b := task.New(task.CapConversational, "", nil, task.PriorityLow)

	_, err := s.Run(context.Background(), graphOf(t, a, b), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.Status != task.StatusFailed || !strings.Contains(a.Error, "panic") {
		t.Errorf("panicking task: status=%s error=%q", a.Status, a.Error)
	}
	if b.Status != task.StatusCompleted {
		t.Errorf("sibling of panicking task failed too: %s", b.Status)
	}
}

func TestRunFailsTaskWithoutProvider(t *testing.T) {
	log := &callLog{}
	reg := newTestRegistry(t, okProvider(task.CapConversational, log))
	s := NewScheduler(reg, nil)

	a := task.New(task.CapRetrieval, "", nil, task.PriorityHigh)

	_, err := s.Run(context.Background(), graphOf(t, a), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.Status != task.StatusFailed || !strings.Contains(a.Error, "no provider") {
		t.Errorf("status=%s error=%q", a.Status, a.Error)
	}
}

func TestRunPriorityOrdersReadySetTies(t *testing.T) {
	log := &callLog{}
	reg := newTestRegistry(t,
		okProvider(task.CapRetrieval, log),
		okProvider(task.CapAnalysis, log),
		okProvider(task.CapComparison, log),
	)
	s := NewScheduler(reg, nil)

	dep := task.New(task.CapRetrieval, "", nil, task.PriorityHigh)
	low := task.New(task.CapAnalysis, "", nil, task.PriorityLow, dep.ID)
	high := task.New(task.CapComparison, "", nil, task.PriorityHigh, dep.ID)

	_, err := s.Run(context.Background(), graphOf(t, dep, low, high), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if log.index(high.ID) > log.index(low.ID) {
		t.Errorf("high priority ran after low within the ready set: %v", log.ids)
	}
}
