package intent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/search"
	"github.com/yoonhw/jibsa/internal/task"
)

// Clarification messages substituted for tasks that cannot run.
const (
	askLocationReply = "어느 지역의 매물을 찾으시나요? 구, 동 또는 지하철역을 알려주시면 찾아드릴게요."
	needTwoReply     = "비교할 매물을 두 개 이상 골라주세요. 예: \"1번 3번 비교해줘\""
	needOneReply     = "어떤 매물을 말씀하시는지 찾지 못했어요. 먼저 검색한 뒤 번호로 알려주세요."
)

// Decomposer turns one utterance into a task graph. Decompose never
// returns an empty sequence: total failure yields a single conversational
// fallback task.
type Decomposer struct {
	classifier *Classifier
	planner    *planner
	history    *history.Store
}

// NewDecomposer creates a Decomposer. chatModel may be nil, which forces
// the deterministic rule strategies throughout.
func NewDecomposer(chatModel model.ToolCallingChatModel, hist *history.Store) *Decomposer {
	return &Decomposer{
		classifier: NewClassifier(chatModel),
		planner:    &planner{chatModel: chatModel},
		history:    hist,
	}
}

// Decompose classifies the utterance and builds the ordered task list.
func (d *Decomposer) Decompose(ctx context.Context, utterance, actorID string) []*task.Task {
	cls := d.classifier.Classify(ctx, utterance)
	slog.Debug("intent: classified",
		"primary", cls.Primary, "secondary", len(cls.Secondary),
		"confidence", cls.Confidence, "complex", cls.Complex)

	var tasks []*task.Task
	if cls.Complex {
		tasks = d.planner.plan(ctx, utterance, actorID, cls)
	}
	if len(tasks) == 0 {
		tasks = []*task.Task{d.buildTask(cls.Primary, utterance, actorID, task.PriorityHigh)}
	}

	out := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, d.gate(t, utterance, cls))
	}
	return out
}

// buildTask constructs one task with the standard payload.
func (d *Decomposer) buildTask(c task.Capability, utterance, actorID string, prio task.Priority, deps ...string) *task.Task {
	payload := map[string]any{
		task.PayloadQuery:   utterance,
		task.PayloadActorID: actorID,
	}
	return task.New(c, string(c)+" for utterance", payload, prio, deps...)
}

// gate applies the pre-dispatch substitutions: the retrieval location
// requirement and the context sufficiency checks. It returns either the
// task unchanged, an enriched copy, or a conversational replacement.
func (d *Decomposer) gate(t *task.Task, utterance string, cls Classification) *task.Task {
	switch t.Capability {
	case task.CapRetrieval:
		return d.gateRetrieval(t, utterance)
	case task.CapComparison:
		// A comparison fed by a predecessor resolves its records at
		// execution time, after the predecessor has refreshed the history.
		if len(t.DependsOn) > 0 {
			return t
		}
		records := d.history.Resolve(utterance)
		if len(records) == 0 {
			if latest, ok := d.history.Latest(); ok && len(latest.Records) >= 2 {
				records = latest.Records
			}
		}
		if len(records) >= 2 {
			t.Payload[task.PayloadRecords] = records
			return t
		}
		if cls.RequiresContext {
			return d.replaceWithReply(t, needTwoReply)
		}
	case task.CapSimilarity, task.CapAnalysis:
		records := d.history.Resolve(utterance)
		if len(records) == 0 {
			if latest, ok := d.history.Latest(); ok && len(latest.Records) > 0 {
				records = latest.Records
			}
		}
		if len(records) == 0 && cls.RequiresContext {
			return d.replaceWithReply(t, needOneReply)
		}
		if len(records) > 0 {
			t.Payload[task.PayloadRecords] = records
		}
	case task.CapRecommendation:
		if latest, ok := d.history.Latest(); ok && len(latest.Records) > 0 {
			t.Payload[task.PayloadRecords] = latest.Records
		}
	case task.CapSavedList:
		if records := d.history.Resolve(utterance); len(records) > 0 {
			t.Payload[task.PayloadRecords] = records
		} else if latest, ok := d.history.Latest(); ok {
			t.Payload[task.PayloadRecords] = latest.Records
		}
	}
	return t
}

// gateRetrieval blocks unconstrained searches: a retrieval task with no
// location token in the utterance or inherited from context becomes a
// conversational task asking for the location.
func (d *Decomposer) gateRetrieval(t *task.Task, utterance string) *task.Task {
	if loc, ok := LocationOnly(utterance); ok {
		// Location-only follow-up: inherit the prior query's conditions.
		if latest, found := d.history.Latest(); found {
			t.Payload[task.PayloadBaseQuery] = latest.Query
		}
		slog.Debug("intent: location-only follow-up", "location", loc)
		return t
	}
	if history.ExtractLocation(utterance) != "" {
		return t
	}
	if latest, ok := d.history.Latest(); ok && history.ExtractLocation(latest.Query) != "" {
		t.Payload[task.PayloadBaseQuery] = latest.Query
		return t
	}
	return d.replaceWithReply(t, askLocationReply)
}

// replaceWithReply swaps a task for a conversational one with a predefined
// response, keeping the original id so declared dependencies stay valid.
func (d *Decomposer) replaceWithReply(t *task.Task, reply string) *task.Task {
	sub := task.New(task.CapConversational, "clarification", map[string]any{
		task.PayloadQuery:    t.Query(),
		task.PayloadActorID:  t.ActorID(),
		task.PayloadResponse: reply,
	}, t.Priority, t.DependsOn...)
	sub.ID = t.ID
	return sub
}

const planSystemPrompt = `복합 부동산 요청을 작업 목록으로 분해한다.
다음 JSON 배열로만 답한다. type은
retrieval|similarity|analysis|recommendation|comparison|saved_list|conversational 중 하나.
dependencies에는 선행 작업의 type을 적는다.
[{"type": "retrieval", "description": "...", "priority": 1, "dependencies": []},
 {"type": "comparison", "description": "...", "priority": 2, "dependencies": ["retrieval"]}]`

type plannedTask struct {
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Priority     int      `json:"priority"`
	Dependencies []string `json:"dependencies"`
}

// planner asks the model for an ordered multi-task breakdown of a complex
// request and maps declared dependency names to generated task ids. Any
// failure falls back to a linear chain derived from the classification.
type planner struct {
	chatModel model.ToolCallingChatModel
}

func (p *planner) plan(ctx context.Context, utterance, actorID string, cls Classification) []*task.Task {
	if planned := p.planWithModel(ctx, utterance, actorID); len(planned) > 0 {
		return planned
	}
	return p.linearChain(utterance, actorID, cls)
}

func (p *planner) planWithModel(ctx context.Context, utterance, actorID string) []*task.Task {
	if p.chatModel == nil {
		return nil
	}
	msgs := []*schema.Message{
		schema.SystemMessage(planSystemPrompt),
		schema.UserMessage(utterance),
	}
	resp, err := p.chatModel.Generate(ctx, msgs)
	if err != nil {
		slog.Debug("intent: plan call failed", "error", err)
		return nil
	}
	var planned []plannedTask
	if err := json.Unmarshal([]byte(search.StripFences(resp.Content)), &planned); err != nil {
		slog.Debug("intent: unparsable plan", "error", err)
		return nil
	}

	// First pass assigns ids per capability type so dependency names can be
	// mapped; later duplicates of a type reuse the first id.
	idByType := make(map[string]string, len(planned))
	var tasks []*task.Task
	for _, pt := range planned {
		c, ok := parseCapability(pt.Type)
		if !ok {
			slog.Debug("intent: plan names unknown capability", "type", pt.Type)
			return nil
		}
		t := task.New(c, pt.Description, map[string]any{
			task.PayloadQuery:   utterance,
			task.PayloadActorID: actorID,
		}, clampPriority(pt.Priority))
		if _, seen := idByType[string(c)]; !seen {
			idByType[string(c)] = t.ID
		}
		tasks = append(tasks, t)
	}
	for i, pt := range planned {
		for _, dep := range pt.Dependencies {
			c, ok := parseCapability(dep)
			if !ok {
				continue
			}
			if id, found := idByType[string(c)]; found && id != tasks[i].ID {
				tasks[i].DependsOn = append(tasks[i].DependsOn, id)
			}
		}
	}
	return tasks
}

// linearChain derives primary → secondary... with each task depending on
// the previous one.
func (p *planner) linearChain(utterance, actorID string, cls Classification) []*task.Task {
	chain := append([]task.Capability{cls.Primary}, cls.Secondary...)
	var tasks []*task.Task
	for i, c := range chain {
		payload := map[string]any{
			task.PayloadQuery:   utterance,
			task.PayloadActorID: actorID,
		}
		prio := task.PriorityMedium
		if i == 0 {
			prio = task.PriorityHigh
		}
		var deps []string
		if i > 0 {
			deps = []string{tasks[i-1].ID}
		}
		tasks = append(tasks, task.New(c, string(c)+" step", payload, prio, deps...))
	}
	return tasks
}

func clampPriority(p int) task.Priority {
	switch {
	case p <= 1:
		return task.PriorityHigh
	case p == 2:
		return task.PriorityMedium
	default:
		return task.PriorityLow
	}
}
