package task

import "github.com/yoonhw/jibsa/internal/listing"

// Payload keys shared between the decomposer and the capability providers.
const (
	// PayloadQuery is the user utterance driving the task.
	PayloadQuery = "query"
	// PayloadBaseQuery carries a prior utterance whose conditions a
	// location-only follow-up inherits.
	PayloadBaseQuery = "base_query"
	// PayloadActorID identifies the requesting user, empty when anonymous.
	PayloadActorID = "actor_id"
	// PayloadRecords holds []listing.Record resolved from context.
	PayloadRecords = "records"
	// PayloadResponse is a predefined conversational reply.
	PayloadResponse = "response"
)

// Query returns the task's query payload, or "".
func (t *Task) Query() string {
	s, _ := t.Payload[PayloadQuery].(string)
	return s
}

// ActorID returns the task's actor payload, or "".
func (t *Task) ActorID() string {
	s, _ := t.Payload[PayloadActorID].(string)
	return s
}

// ContextRecords returns the listing records resolved from prior context,
// or nil.
func (t *Task) ContextRecords() []listing.Record {
	rs, _ := t.Payload[PayloadRecords].([]listing.Record)
	return rs
}
