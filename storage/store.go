package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mediaqa/config"
	"mediaqa/core"
)

// Embedder produces the fixed-dimension vectors used for similarity search.
// Indexing and querying must go through the same embedder instance:
// mismatched embedding spaces make the scores meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// VectorStore is the persistent index boundary. Entries are tagged with the
// media id they came from; Query with an empty media id searches the whole
// corpus.
type VectorStore interface {
	// Add embeds and writes the chunks, returning their ids in order.
	Add(ctx context.Context, mediaID string, chunks []core.Chunk) ([]string, error)
	// Query returns the topK entries most similar to the question.
	Query(ctx context.Context, mediaID, question string, topK int) ([]core.Hit, error)
	// DeleteMedia removes every entry for one media item.
	DeleteMedia(ctx context.Context, mediaID string) (int, error)
	Name() string
	Close(ctx context.Context) error
}

// NewVectorStore selects the backend from the STORE env var. The memory
// store is the default so the service runs without external infrastructure;
// pgvector and milvus are the durable production backends.
func NewVectorStore(ctx context.Context, cfg *config.Config, emb Embedder) (VectorStore, error) {
	kind := strings.ToLower(strings.TrimSpace(os.Getenv("STORE")))
	switch kind {
	case "pgvector":
		return newPgVectorStore(ctx, cfg, emb)
	case "milvus":
		return newMilvusVectorStore(ctx, cfg, emb)
	case "", "memory":
		return newMemoryVectorStore(emb)
	}
	return nil, fmt.Errorf("unknown STORE backend %q (want memory, pgvector or milvus)", kind)
}

// embedChunks computes every embedding before any write happens, so a
// failing embedding call leaves the index untouched.
func embedChunks(ctx context.Context, emb Embedder, chunks []core.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		v, err := emb.Embed(ctx, c.Text)
		if err != nil {
			return nil, &core.IndexWriteError{Written: 0, Err: fmt.Errorf("embed chunk %d: %w", c.Seq, err)}
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}
