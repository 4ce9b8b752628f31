package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus(16)
	defer b.Close()

	got := make(chan Event, 1)
	unsub := b.Subscribe(func(e Event) { got <- e })
	defer unsub()

	b.Publish(NewEvent(EventRequestReceived, SourceGateway, map[string]any{"query": "서초구 전세"}))

	select {
	case e := <-got:
		if e.Type != EventRequestReceived || e.Source != SourceGateway {
			t.Errorf("event = %+v", e)
		}
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Errorf("missing id/timestamp: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := NewBus(16)
	defer b.Close()

	got := make(chan Event, 4)
	unsub := b.Subscribe(func(e Event) { got <- e }, EventTaskFailed)
	defer unsub()

	b.Publish(NewEvent(EventTaskCompleted, SourceScheduler, nil))
	b.Publish(NewEvent(EventTaskFailed, SourceScheduler, nil))

	select {
	case e := <-got:
		if e.Type != EventTaskFailed {
			t.Errorf("filter passed %s", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("filtered event not delivered")
	}
	select {
	case e := <-got:
		t.Errorf("unexpected second event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHistoryRingBuffer(t *testing.T) {
	b := NewBus(4)
	defer b.Close()

	for i := 0; i < 6; i++ {
		b.Publish(NewEvent(EventTaskStarted, SourceScheduler, map[string]any{"n": i}))
	}

	// Dispatch is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(b.History(10)) == 4 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	events := b.History(10)
	if len(events) != 4 {
		t.Fatalf("ring kept %d events, want 4", len(events))
	}
	if events[0].Payload["n"].(int) != 2 {
		t.Errorf("oldest retained = %v", events[0].Payload["n"])
	}

	if got := b.History(2); len(got) != 2 {
		t.Errorf("limited history = %d", len(got))
	}
}

func TestTypedPayloadRoundTrip(t *testing.T) {
	e := NewTypedEventWithSession(SourceScheduler, TaskPayload{
		TaskID:     "task_ab12cd34",
		Capability: "retrieval",
		Status:     "failed",
		Error:      "timeout",
	}, "sess_1")

	if e.Type != EventTaskFailed {
		t.Errorf("type = %s", e.Type)
	}
	if e.SessionID != "sess_1" {
		t.Errorf("session = %s", e.SessionID)
	}

	p, ok := GetTaskPayload(e)
	if !ok {
		t.Fatal("payload not extractable")
	}
	if p.TaskID != "task_ab12cd34" || p.Error != "timeout" {
		t.Errorf("payload = %+v", p)
	}
}

func TestTaskPayloadEventType(t *testing.T) {
	if (TaskPayload{Status: "completed"}).EventType() != EventTaskCompleted {
		t.Error("completed")
	}
	if (TaskPayload{Status: "failed"}).EventType() != EventTaskFailed {
		t.Error("failed")
	}
	if (TaskPayload{Status: "running"}).EventType() != EventTaskStarted {
		t.Error("running")
	}
}

func TestSubscribeChan(t *testing.T) {
	b := NewBus(16)
	defer b.Close()

	ch, cancel := b.SubscribeChan(4, EventHistoryReset)
	defer cancel()

	b.Publish(NewEvent(EventHistoryReset, SourceGateway, nil))

	select {
	case e := <-ch:
		if e.Type != EventHistoryReset {
			t.Errorf("type = %s", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel subscriber got nothing")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := NewBus(4)
	b.Close()
	b.Publish(NewEvent(EventTaskStarted, SourceScheduler, nil))
}

func TestRingBuffer(t *testing.T) {
	r := NewRingBuffer(3)
	if got := r.Get(5); len(got) != 0 {
		t.Fatalf("empty ring returned %d", len(got))
	}
	for i := 0; i < 5; i++ {
		r.Add(NewEvent(EventCacheSweep, SourceCron, map[string]any{"n": i}))
	}
	got := r.Get(10)
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
	if got[2].Payload["n"].(int) != 4 {
		t.Errorf("newest = %v", got[2].Payload["n"])
	}
}
