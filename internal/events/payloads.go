package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// RequestPayload describes one inbound utterance crossing the transport
// boundary.
type RequestPayload struct {
	Query   string `json:"query"`
	ActorID string `json:"actor_id,omitempty"`
}

func (RequestPayload) EventType() EventType { return EventRequestReceived }

// ResponsePayload describes one completed orchestration run.
type ResponsePayload struct {
	ResultKind     string        `json:"result_kind"`
	Capabilities   []string      `json:"capabilities_used"`
	TasksCompleted int           `json:"tasks_completed"`
	TasksFailed    int           `json:"tasks_failed"`
	Duration       time.Duration `json:"duration_ns"`
}

func (ResponsePayload) EventType() EventType { return EventRequestCompleted }

// TaskPayload describes a task lifecycle transition.
type TaskPayload struct {
	TaskID     string        `json:"task_id"`
	Capability string        `json:"capability"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
}

func (p TaskPayload) EventType() EventType {
	switch p.Status {
	case "completed":
		return EventTaskCompleted
	case "failed":
		return EventTaskFailed
	default:
		return EventTaskStarted
	}
}

// SweepPayload reports a cache maintenance pass.
type SweepPayload struct {
	Purged int `json:"purged"`
}

func (SweepPayload) EventType() EventType { return EventCacheSweep }

// NewTypedEvent wraps a typed payload into an Event.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

// NewTypedEventWithSession wraps a typed payload with session context.
func NewTypedEventWithSession(source EventSource, payload EventPayload, sessionID string) Event {
	e := NewTypedEvent(source, payload)
	e.SessionID = sessionID
	return e
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ExtractPayload decodes an event's payload back into its typed form.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

// GetTaskPayload extracts a task lifecycle payload.
func GetTaskPayload(e Event) (TaskPayload, bool) {
	return ExtractPayload[TaskPayload](e)
}

// GetResponsePayload extracts a run completion payload.
func GetResponsePayload(e Event) (ResponsePayload, bool) {
	return ExtractPayload[ResponsePayload](e)
}
