package search

import (
	"context"
	"fmt"

	"github.com/yoonhw/jibsa/internal/listing"
)

const (
	// SimilarTopK bounds similarity results.
	SimilarTopK = 10
	// minSimilarity cuts off weak neighbors.
	minSimilarity = 0.75
	// candidateFactor over-fetches before post-filtering.
	candidateFactor = 10
)

// Similar finds listings resembling the base record, excluding the base
// itself. extra narrows candidates with price or area overrides parsed from
// the utterance. topK <= 0 uses SimilarTopK.
func (e *Engine) Similar(ctx context.Context, base listing.Record, extra listing.Filter, topK int) ([]listing.Record, error) {
	if e.vectors == nil || e.embedder == nil {
		return nil, fmt.Errorf("similarity search requires a vector store")
	}
	if topK <= 0 {
		topK = SimilarTopK
	}

	vec, real := e.embedder.Embed(ctx, base.EmbedText())
	if !real {
		return nil, fmt.Errorf("similarity search: embedding unavailable")
	}

	results, err := e.vectors.QueryEmbedding(ctx, vec, topK*candidateFactor, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	var out []listing.Record
	for _, v := range results {
		if v.ID == base.ID || float64(v.Similarity) < minSimilarity {
			continue
		}
		rec, ok := e.store.ByID(v.ID)
		if !ok || !extra.Matches(rec) {
			continue
		}
		out = append(out, rec.WithScore(float64(v.Similarity)).WithRank(len(out)+1))
		if len(out) >= topK {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}
