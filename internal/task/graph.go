package task

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when the dependency graph is not acyclic.
var ErrCycle = errors.New("cycle detected in task graph")

// Graph is the set of tasks for one orchestration run plus derived
// dependency edges. Built once per run; validated with Kahn's algorithm.
type Graph struct {
	tasks []*Task
	byID  map[string]*Task
	order []string // topological order
}

// NewGraph builds and validates a graph. It errors on a dependency naming
// an unknown task or on a cycle.
func NewGraph(tasks []*Task) (*Graph, error) {
	g := &Graph{
		tasks: tasks,
		byID:  make(map[string]*Task, len(tasks)),
	}
	for _, t := range tasks {
		if _, dup := g.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		g.byID[t.ID] = t
	}

	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] += 0
		for _, dep := range t.DependsOn {
			if _, ok := g.byID[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
			inDegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var queue []string
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) != len(tasks) {
		return nil, ErrCycle
	}

	g.order = order
	return g, nil
}

// Tasks returns the tasks in insertion order.
func (g *Graph) Tasks() []*Task {
	return g.tasks
}

// ByID returns the task with the given id, or nil.
func (g *Graph) ByID(id string) *Task {
	return g.byID[id]
}

// Ready returns pending tasks whose every dependency reached a terminal
// state, in insertion order. A failed dependency still unblocks its
// dependents; providers treat missing predecessor output as empty.
func (g *Graph) Ready() []*Task {
	var ready []*Task
	for _, t := range g.tasks {
		if t.Status != StatusPending {
			continue
		}
		ok := true
		for _, dep := range t.DependsOn {
			if !g.byID[dep].Status.Terminal() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// Pending returns how many tasks have not started.
func (g *Graph) Pending() int {
	n := 0
	for _, t := range g.tasks {
		if t.Status == StatusPending {
			n++
		}
	}
	return n
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}
