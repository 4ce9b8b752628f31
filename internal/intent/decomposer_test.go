package intent

import (
	"context"
	"testing"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/task"
)

func TestDecomposeRetrievalWithLocation(t *testing.T) {
	d := NewDecomposer(nil, history.NewStore())
	tasks := d.Decompose(context.Background(), "서초구 전세 찾아줘", "actor-1")

	if len(tasks) != 1 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	got := tasks[0]
	if got.Capability != task.CapRetrieval {
		t.Errorf("capability = %s", got.Capability)
	}
	if got.Query() != "서초구 전세 찾아줘" || got.ActorID() != "actor-1" {
		t.Errorf("payload: query=%q actor=%q", got.Query(), got.ActorID())
	}
}

func TestDecomposeRetrievalWithoutLocationAsks(t *testing.T) {
	d := NewDecomposer(nil, history.NewStore())
	tasks := d.Decompose(context.Background(), "전세 매물 찾아줘", "")

	if len(tasks) != 1 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	got := tasks[0]
	if got.Capability != task.CapConversational {
		t.Fatalf("unlocated retrieval should become conversational, got %s", got.Capability)
	}
	if got.Payload[task.PayloadResponse] != askLocationReply {
		t.Errorf("response = %v", got.Payload[task.PayloadResponse])
	}
}

func TestDecomposeRetrievalInheritsLocationFromHistory(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세 3억 이하", []listing.Record{{ID: "a"}})
	d := NewDecomposer(nil, hist)

	tasks := d.Decompose(context.Background(), "보증금 2억 이하로 찾아줘", "")
	got := tasks[0]
	if got.Capability != task.CapRetrieval {
		t.Fatalf("capability = %s", got.Capability)
	}
	if got.Payload[task.PayloadBaseQuery] != "서초구 전세 3억 이하" {
		t.Errorf("base query = %v", got.Payload[task.PayloadBaseQuery])
	}
}

func TestDecomposeLocationOnlyFollowUp(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세 3억 이하", []listing.Record{{ID: "a"}})
	d := NewDecomposer(nil, hist)

	tasks := d.Decompose(context.Background(), "강남구는?", "")
	got := tasks[0]
	if got.Capability != task.CapRetrieval {
		t.Fatalf("capability = %s", got.Capability)
	}
	if got.Payload[task.PayloadBaseQuery] != "서초구 전세 3억 이하" {
		t.Errorf("base query = %v", got.Payload[task.PayloadBaseQuery])
	}
}

func TestDecomposeComparisonNeedsTwoRecords(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세", []listing.Record{{ID: "only"}})
	d := NewDecomposer(nil, hist)

	tasks := d.Decompose(context.Background(), "1번 2번 비교해줘", "")
	got := tasks[0]
	if got.Capability != task.CapConversational {
		t.Fatalf("single-record comparison should ask for more, got %s", got.Capability)
	}
	if got.Payload[task.PayloadResponse] != needTwoReply {
		t.Errorf("response = %v", got.Payload[task.PayloadResponse])
	}
}

func TestDecomposeComparisonResolvesOrdinals(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세", []listing.Record{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	d := NewDecomposer(nil, hist)

	tasks := d.Decompose(context.Background(), "1번 3번 비교해줘", "")
	got := tasks[0]
	if got.Capability != task.CapComparison {
		t.Fatalf("capability = %s", got.Capability)
	}
	records := got.ContextRecords()
	if len(records) != 2 || records[0].ID != "a" || records[1].ID != "c" {
		t.Errorf("records = %v", records)
	}
}

func TestDecomposeCompoundProducesChain(t *testing.T) {
	hist := history.NewStore()
	// Stale results from an earlier search must not leak into the
	// comparison leg; its input is the retrieval it depends on.
	hist.Append("", "강남구 전세", []listing.Record{{ID: "x"}, {ID: "y"}})
	d := NewDecomposer(nil, hist)

	tasks := d.Decompose(context.Background(), "서초구 전세 찾아서 비교해줘", "")
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Capability != task.CapRetrieval {
		t.Errorf("first = %s", tasks[0].Capability)
	}
	if len(tasks[1].DependsOn) != 1 || tasks[1].DependsOn[0] != tasks[0].ID {
		t.Errorf("second task must depend on the first: %v", tasks[1].DependsOn)
	}
	// The comparison leg stays a comparison even on a fresh session: its
	// records come from the retrieval it depends on, at execution time.
	if tasks[1].Capability != task.CapComparison {
		t.Errorf("second = %s, want comparison", tasks[1].Capability)
	}
	if len(tasks[1].ContextRecords()) != 0 {
		t.Errorf("premature records = %v", tasks[1].ContextRecords())
	}
}

func TestDecomposeStandaloneComparisonStillGated(t *testing.T) {
	d := NewDecomposer(nil, history.NewStore())

	tasks := d.Decompose(context.Background(), "1번 3번 비교해줘", "")
	got := tasks[0]
	if got.Capability != task.CapConversational {
		t.Fatalf("capability = %s, want conversational substitute", got.Capability)
	}
	if reply, _ := got.Payload[task.PayloadResponse].(string); reply == "" {
		t.Error("substitute carries no reply")
	}
}

func TestDecomposeSimilarityFallsBackToLatest(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세", []listing.Record{{ID: "a"}, {ID: "b"}})
	d := NewDecomposer(nil, hist)

	tasks := d.Decompose(context.Background(), "비슷한 매물 보여줘", "")
	got := tasks[0]
	if got.Capability != task.CapSimilarity {
		t.Fatalf("capability = %s", got.Capability)
	}
	if len(got.ContextRecords()) != 2 {
		t.Errorf("records = %v", got.ContextRecords())
	}
}

func TestDecomposeConversationalFallback(t *testing.T) {
	d := NewDecomposer(nil, history.NewStore())
	tasks := d.Decompose(context.Background(), "안녕하세요", "")
	if len(tasks) != 1 || tasks[0].Capability != task.CapConversational {
		t.Fatalf("got %v", tasks)
	}
}
