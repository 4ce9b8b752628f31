package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/search"
	"github.com/yoonhw/jibsa/internal/task"
)

// RetrievalProvider runs the hybrid search for one utterance and appends
// the result to the context store.
type RetrievalProvider struct {
	engine    *search.Engine
	extractor *search.Extractor
	history   *history.Store
}

// NewRetrievalProvider wires the hybrid engine, the param extractor and the
// context store.
func NewRetrievalProvider(engine *search.Engine, extractor *search.Extractor, hist *history.Store) *RetrievalProvider {
	return &RetrievalProvider{engine: engine, extractor: extractor, history: hist}
}

func (p *RetrievalProvider) Capability() task.Capability {
	return task.CapRetrieval
}

// Execute derives structured params (inheriting a base query's conditions
// for location-only follow-ups), runs the hybrid search, and records the
// outcome in history.
func (p *RetrievalProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	query := t.Query()
	params := p.extractor.Extract(ctx, query)
	if base, _ := t.Payload[task.PayloadBaseQuery].(string); base != "" {
		params = p.extractor.Extract(ctx, base).Merge(params)
	}

	records, err := p.engine.Search(ctx, query, params, search.DefaultTopK)
	if errors.Is(err, search.ErrNoMatch) {
		return &task.Result{Text: "조건에 맞는 매물을 찾지 못했어요. 조건을 조금 넓혀볼까요?"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	p.history.Append(t.ActorID(), query, records)

	var b strings.Builder
	fmt.Fprintf(&b, "%d건의 매물을 찾았어요.\n", len(records))
	for i, r := range records {
		if i >= 5 {
			fmt.Fprintf(&b, "... 외 %d건", len(records)-5)
			break
		}
		fmt.Fprintf(&b, "%d번 %s\n", r.Rank, r.Label())
	}
	return &task.Result{Text: strings.TrimRight(b.String(), "\n"), Records: records}, nil
}
