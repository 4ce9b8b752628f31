package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/search"
	"github.com/yoonhw/jibsa/internal/task"
)

// SimilarityProvider finds listings resembling a reference record resolved
// from prior context.
type SimilarityProvider struct {
	engine    *search.Engine
	extractor *search.Extractor
	history   *history.Store
}

// NewSimilarityProvider wires the hybrid engine and the context store.
func NewSimilarityProvider(engine *search.Engine, extractor *search.Extractor, hist *history.Store) *SimilarityProvider {
	return &SimilarityProvider{engine: engine, extractor: extractor, history: hist}
}

func (p *SimilarityProvider) Capability() task.Capability {
	return task.CapSimilarity
}

// Execute takes the first resolved context record as the reference,
// narrows candidates with price/area overrides from the utterance, and
// records the outcome in history.
func (p *SimilarityProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	base, ok := p.reference(t)
	if !ok {
		return &task.Result{Text: "기준이 될 매물을 찾지 못했어요. 먼저 검색한 뒤 번호로 알려주세요."}, nil
	}

	extra := overrideFilter(p.extractor.Extract(ctx, t.Query()))
	records, err := p.engine.Similar(ctx, base, extra, search.SimilarTopK)
	if errors.Is(err, search.ErrNoMatch) {
		return &task.Result{Text: fmt.Sprintf("%s와 비슷한 매물을 찾지 못했어요.", base.AptName)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}

	p.history.Append(t.ActorID(), t.Query(), records)

	var b strings.Builder
	fmt.Fprintf(&b, "%s와 비슷한 매물 %d건이에요.\n", base.AptName, len(records))
	for i, r := range records {
		if i >= 5 {
			fmt.Fprintf(&b, "... 외 %d건", len(records)-5)
			break
		}
		fmt.Fprintf(&b, "%d번 %s\n", r.Rank, r.Label())
	}
	return &task.Result{Text: strings.TrimRight(b.String(), "\n"), Records: records}, nil
}

// reference picks the first context record, falling back to the most
// recent history entry's top result.
func (p *SimilarityProvider) reference(t *task.Task) (listing.Record, bool) {
	if records := t.ContextRecords(); len(records) > 0 {
		return records[0], true
	}
	if latest, ok := p.history.Latest(); ok && len(latest.Records) > 0 {
		return latest.Records[0], true
	}
	return listing.Record{}, false
}

// overrideFilter keeps only the range constraints from utterance params;
// the reference record itself anchors the location and lease type.
func overrideFilter(params search.Params) listing.Filter {
	return listing.Filter{
		MaxDeposit: params.MaxDeposit,
		MaxMonthly: params.MaxMonthly,
	}
}
