package orchestrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/yoonhw/jibsa/internal/events"
	"github.com/yoonhw/jibsa/internal/intent"
	"github.com/yoonhw/jibsa/internal/task"
)

const processingErrorReply = "요청을 처리하는 중 문제가 발생했어요. 잠시 후 다시 시도해 주세요."

// Orchestrator is the request facade: decompose, schedule, aggregate.
// Each call owns its task graph exclusively; no state is shared across
// concurrent requests except the injected stores.
type Orchestrator struct {
	decomposer *intent.Decomposer
	scheduler  *Scheduler
	bus        *events.Bus
}

// New wires the orchestrator. bus may be nil.
func New(decomposer *intent.Decomposer, scheduler *Scheduler, bus *events.Bus) *Orchestrator {
	return &Orchestrator{decomposer: decomposer, scheduler: scheduler, bus: bus}
}

// Handle processes one utterance end to end and always returns a
// user-facing response; internal errors degrade to a generic message.
func (o *Orchestrator) Handle(ctx context.Context, query, actorID, sessionID string) Response {
	start := time.Now()
	if o.bus != nil {
		o.bus.Publish(events.NewTypedEventWithSession(events.SourceOrchestrator,
			events.RequestPayload{Query: query, ActorID: actorID}, sessionID))
	}

	tasks := o.decomposer.Decompose(ctx, query, actorID)
	graph, err := task.NewGraph(tasks)
	if err != nil {
		slog.Error("orchestrator: invalid task graph", "error", err)
		return Response{Text: processingErrorReply, ResultKind: KindChat}
	}

	terminal, err := o.scheduler.Run(ctx, graph, sessionID)
	if err != nil {
		slog.Error("orchestrator: run ended with graph error", "error", err)
	}

	resp := Combine(terminal)
	o.publishCompleted(resp, terminal, sessionID, time.Since(start))
	return resp
}

func (o *Orchestrator) publishCompleted(resp Response, terminal []*task.Task, sessionID string, took time.Duration) {
	if o.bus == nil {
		return
	}
	failed := 0
	for _, t := range terminal {
		if t.Status == task.StatusFailed {
			failed++
		}
	}
	o.bus.Publish(events.NewTypedEventWithSession(events.SourceOrchestrator, events.ResponsePayload{
		ResultKind:     resp.ResultKind,
		Capabilities:   resp.Capabilities,
		TasksCompleted: resp.TasksCompleted,
		TasksFailed:    failed,
		Duration:       took,
	}, sessionID))
}
