package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"mediaqa/config"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint with a
// shared client.
type OpenAIEmbedder struct {
	cli   *openai.Client
	model string
	dim   int
}

func NewOpenAIEmbedder(cli *openai.Client, cfg *config.Config) *OpenAIEmbedder {
	return &OpenAIEmbedder{cli: cli, model: cfg.EmbeddingModel, dim: cfg.EmbeddingDim}
}

func (e *OpenAIEmbedder) Dim() int { return e.dim }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}
	resp, err := e.cli.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}

// HashingEmbedder is a deterministic offline embedder: tokens are hashed
// into buckets and the vector is L2-normalized. Similarity degrades to
// term overlap, which is enough for development and tests without an API
// credential. Never mix its vectors with API-produced ones in one index.
type HashingEmbedder struct {
	Dimension int
}

func (e HashingEmbedder) Dim() int {
	if e.Dimension <= 0 {
		return 256
	}
	return e.Dimension
}

func (e HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := e.Dim()
	vec := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()[]")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dim)]++
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// PickEmbedder returns the API embedder when a credential is configured,
// otherwise the offline hashing embedder. The EMBEDDER env var forces the
// local one.
func PickEmbedder(cli *openai.Client, cfg *config.Config) Embedder {
	if strings.EqualFold(os.Getenv("EMBEDDER"), "local") {
		return HashingEmbedder{Dimension: cfg.EmbeddingDim}
	}
	if !cfg.HasValidAPI() {
		log.Printf("Warning: API configuration not found, using local hashing embedder")
		return HashingEmbedder{Dimension: cfg.EmbeddingDim}
	}
	return NewOpenAIEmbedder(cli, cfg)
}
