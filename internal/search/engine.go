package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/yoonhw/jibsa/internal/embed"
	"github.com/yoonhw/jibsa/internal/listing"
)

// Fusion constants. The lexical pass carries more weight than the vector
// pass because structured filters are exact while embeddings are
// approximate.
const (
	passLimit     = 60
	rrfK          = 60
	weightLexical = 0.7
	weightVector  = 0.3

	// DefaultTopK bounds the fused result when the caller does not.
	DefaultTopK = 30
)

// ErrNoMatch signals an empty result set; callers render it as a "no
// listings found" message rather than an empty success.
var ErrNoMatch = errors.New("no listings matched the query")

// Engine merges a lexical filter pass and a vector similarity pass over the
// listing store using Reciprocal Rank Fusion.
type Engine struct {
	store    *listing.Store
	vectors  *VectorStore
	embedder *embed.Client
}

// NewEngine builds the hybrid engine. vectors and embedder may be nil, in
// which case searches are lexical-only.
func NewEngine(store *listing.Store, vectors *VectorStore, embedder *embed.Client) *Engine {
	return &Engine{store: store, vectors: vectors, embedder: embedder}
}

// Search runs both passes for queryText under the structured params, fuses
// the ranked candidates, and applies the station post-filter. topK <= 0
// uses DefaultTopK.
func (e *Engine) Search(ctx context.Context, queryText string, p Params, topK int) ([]listing.Record, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	lexical := e.store.Query(p.Filter(), passLimit)

	vector, vecErr := e.vectorPass(ctx, queryText, p)
	if vecErr != nil {
		slog.Warn("search: vector pass failed, fusing lexical only", "error", vecErr)
	}
	if len(lexical) == 0 && vecErr != nil {
		// Lexical returned nothing and vector errored outright: with no pass
		// contributing candidates and one broken, report engine failure.
		return nil, fmt.Errorf("hybrid search failed: %w", vecErr)
	}

	fused := fuse(lexical, vector, e.store)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	out := make([]listing.Record, 0, len(fused))
	for _, id := range fused {
		r, ok := e.store.ByID(id)
		if !ok {
			continue
		}
		if p.Station != "" && !matchesStation(r, p) {
			continue
		}
		out = append(out, r.WithRank(len(out)+1))
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}

// vectorPass embeds the query and runs the filtered nearest-neighbor
// search. A degraded (zero-vector) embedding skips the pass so that fusion
// falls back to lexical candidates only.
func (e *Engine) vectorPass(ctx context.Context, queryText string, p Params) ([]VectorResult, error) {
	if e.vectors == nil || e.embedder == nil {
		return nil, nil
	}
	vec, real := e.embedder.Embed(ctx, queryText)
	if !real {
		slog.Warn("search: embedding degraded to zero vector, skipping vector pass")
		return nil, nil
	}

	where := map[string]string{}
	if p.Gu != "" {
		where["gu"] = p.Gu
	}
	if p.Dong != "" {
		where["dong"] = p.Dong
	}
	if p.RentType != "" {
		where["rent_type"] = p.RentType
	}
	if len(where) == 0 {
		where = nil
	}

	// Over-fetch so the post-query range filter still leaves enough
	// candidates; chromem metadata filters are equality-only.
	results, err := e.vectors.QueryEmbedding(ctx, vec, passLimit*2, where)
	if err != nil {
		return nil, err
	}

	f := p.Filter()
	var out []VectorResult
	for _, r := range results {
		rec, ok := e.store.ByID(r.ID)
		if !ok || !f.Matches(rec) {
			continue
		}
		out = append(out, r)
		if len(out) >= passLimit {
			break
		}
	}
	return out, nil
}

// fuse applies Reciprocal Rank Fusion over the two ranked candidate lists
// and returns listing ids sorted by descending fused score, ties broken by
// store-default order.
func fuse(lexical []listing.Record, vector []VectorResult, store *listing.Store) []string {
	scores := make(map[string]float64)
	for i, r := range lexical {
		scores[r.ID] += weightLexical / float64(rrfK+i+1)
	}
	for i, v := range vector {
		scores[v.ID] += weightVector / float64(rrfK+i+1)
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		sa, sb := scores[ids[a]], scores[ids[b]]
		if sa != sb {
			return sa > sb
		}
		return store.Order(ids[a]) < store.Order(ids[b])
	})
	return ids
}

// matchesStation is the exact post-filter for station searches. It defends
// against approximate matches leaking in from the vector pass.
func matchesStation(r listing.Record, p Params) bool {
	if r.NearestStation == "" {
		return false
	}
	want := strings.TrimSuffix(p.Station, "역")
	have := strings.TrimSuffix(r.NearestStation, "역")
	if want != have {
		return false
	}
	maxDist := p.MaxDistance
	if maxDist <= 0 {
		maxDist = DefaultStationDistance
	}
	return r.DistanceToStation <= maxDist
}
