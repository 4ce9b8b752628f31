package search

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cloudwego/eino/components/embedding"
	chromem "github.com/philippgille/chromem-go"

	"github.com/yoonhw/jibsa/internal/listing"
)

const collectionName = "jibsa_listings"

// VectorResult holds a single nearest-neighbor hit.
type VectorResult struct {
	ID         string
	Similarity float32
	Metadata   map[string]string
}

// VectorStore wraps chromem-go for listing embeddings. Structured
// pre-filtering uses chromem metadata equality on gu/dong/rent_type; range
// constraints are applied by the caller after the query.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewVectorStore creates a persistent vector store under dir.
// The embedder is bridged from Eino's [][]float64 to chromem-go's []float32.
func NewVectorStore(ctx context.Context, dir string, embedder embedding.Embedder) (*VectorStore, error) {
	vectorDir := filepath.Join(dir, "vectors")
	db, err := chromem.NewPersistentDB(vectorDir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return newVectorStore(ctx, db, embedder)
}

// NewMemoryVectorStore creates a non-persistent store, used in tests and
// when no data directory is configured.
func NewMemoryVectorStore(ctx context.Context, embedder embedding.Embedder) (*VectorStore, error) {
	return newVectorStore(ctx, chromem.NewDB(), embedder)
}

func newVectorStore(ctx context.Context, db *chromem.DB, embedder embedding.Embedder) (*VectorStore, error) {
	col, err := db.GetOrCreateCollection(collectionName, nil, bridgeEmbedder(ctx, embedder))
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	return &VectorStore{db: db, collection: col}, nil
}

// Index upserts every record's embed text with its filterable metadata.
func (vs *VectorStore) Index(ctx context.Context, records []listing.Record) error {
	for _, r := range records {
		meta := map[string]string{
			"gu":        r.Gu,
			"dong":      r.Dong,
			"rent_type": r.EffectiveRentType(),
		}
		if err := vs.collection.Add(ctx, []string{r.ID}, nil, []map[string]string{meta}, []string{r.EmbedText()}); err != nil {
			return fmt.Errorf("index listing %s: %w", r.ID, err)
		}
	}
	return nil
}

// QueryEmbedding performs a nearest-neighbor search with an optional
// metadata equality pre-filter.
func (vs *VectorStore) QueryEmbedding(ctx context.Context, vec []float64, nResults int, where map[string]string) ([]VectorResult, error) {
	count := vs.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if nResults > count {
		nResults = count
	}

	f32 := make([]float32, len(vec))
	for i, v := range vec {
		f32[i] = float32(v)
	}
	results, err := vs.collection.QueryEmbedding(ctx, f32, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]VectorResult, len(results))
	for i, r := range results {
		out[i] = VectorResult{ID: r.ID, Similarity: r.Similarity, Metadata: r.Metadata}
	}
	return out, nil
}

// Count returns the number of indexed listings.
func (vs *VectorStore) Count() int {
	return vs.collection.Count()
}

// bridgeEmbedder converts an Eino Embedder ([][]float64) to a chromem-go EmbeddingFunc ([]float32).
func bridgeEmbedder(ctx context.Context, embedder embedding.Embedder) chromem.EmbeddingFunc {
	return func(embedCtx context.Context, text string) ([]float32, error) {
		if embedCtx == context.Background() {
			embedCtx = ctx
		}
		vectors, err := embedder.EmbedStrings(embedCtx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("embed text: %w", err)
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("embed text: empty result")
		}
		f64 := vectors[0]
		f32 := make([]float32, len(f64))
		for i, v := range f64 {
			f32[i] = float32(v)
		}
		return f32, nil
	}
}
