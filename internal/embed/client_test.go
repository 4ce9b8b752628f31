package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// flakyEmbedder fails a set number of calls before succeeding.
type flakyEmbedder struct {
	failures int
	calls    int
}

func (f *flakyEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	f := &flakyEmbedder{failures: 1}
	c := NewClient(f, nil)

	vec, real := c.Embed(context.Background(), "방배동 전세")
	if !real {
		t.Fatal("expected a real embedding after retry")
	}
	if len(vec) != 3 {
		t.Fatalf("vector length = %d", len(vec))
	}
	if f.calls != 2 {
		t.Errorf("calls = %d, want 2", f.calls)
	}
}

func TestEmbedDegradesToZeroVector(t *testing.T) {
	f := &flakyEmbedder{failures: 100}
	c := NewClient(f, nil)

	vec, real := c.Embed(context.Background(), "방배동 전세")
	if real {
		t.Fatal("expected degraded embedding")
	}
	if len(vec) != Dims {
		t.Fatalf("zero vector length = %d, want %d", len(vec), Dims)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("degraded vector must be all zeros")
		}
	}
	if f.calls != 3 {
		t.Errorf("calls = %d, want 3", f.calls)
	}
}

func TestEmbedContextCancelDuringBackoff(t *testing.T) {
	f := &flakyEmbedder{failures: 100}
	c := NewClient(f, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	vec, real := c.Embed(ctx, "방배동 전세")
	if real {
		t.Fatal("expected degraded embedding")
	}
	if len(vec) != Dims {
		t.Fatalf("zero vector length = %d", len(vec))
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Errorf("cancel not honored, took %v", took)
	}
}

func TestEmbedUsesCache(t *testing.T) {
	f := &flakyEmbedder{}
	c := NewClient(f, NewCache(time.Minute))

	c.Embed(context.Background(), "방배동 전세")
	c.Embed(context.Background(), "방배동 전세")
	if f.calls != 1 {
		t.Errorf("calls = %d, want 1 (second hit cached)", f.calls)
	}

	entries, hits, misses := c.Cache().Stats()
	if entries != 1 || hits != 1 || misses != 1 {
		t.Errorf("stats = %d entries, %d hits, %d misses", entries, hits, misses)
	}
}
