package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"mediaqa/config"
	"mediaqa/core"
)

// MilvusVectorStore persists the index in a Milvus collection with an HNSW
// cosine index. Entries carry the media id as a scalar field so retrieval
// can be filtered per upload.
type MilvusVectorStore struct {
	mc   client.Client
	coll string
	emb  Embedder
	dim  int
}

func newMilvusVectorStore(ctx context.Context, cfg *config.Config, emb Embedder) (*MilvusVectorStore, error) {
	addr := cfg.MilvusAddr
	username := os.Getenv("MILVUS_USERNAME")
	password := os.Getenv("MILVUS_PASSWORD")
	apiKey := os.Getenv("MILVUS_API_KEY") // for Zilliz Cloud

	mc, err := client.NewClient(ctx, client.Config{Address: addr, Username: username, Password: password, APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusVectorStore{mc: mc, coll: cfg.MilvusColl, emb: emb, dim: emb.Dim()}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusVectorStore) Name() string { return "milvus" }

func (s *MilvusVectorStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		if err := s.mc.CreateCollection(ctx, s.collectionSchema(), int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

// collectionSchema describes the chunk collection. The name must be set on
// the schema itself: CreateCollection validates it client-side and rejects
// an unnamed schema before issuing any RPC.
func (s *MilvusVectorStore) collectionSchema() *entity.Schema {
	schema := entity.NewSchema().WithName(s.coll)
	schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("chunk_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("media_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(255))
	schema.WithField(entity.NewField().WithName("seq").WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
	schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))
	return schema
}

func (s *MilvusVectorStore) Add(ctx context.Context, mediaID string, chunks []core.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := embedChunks(ctx, s.emb, chunks)
	if err != nil {
		return nil, err
	}

	chunkIDs := make([]string, 0, len(chunks))
	mediaIDs := make([]string, 0, len(chunks))
	seqs := make([]int64, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		chunkIDs = append(chunkIDs, c.ID)
		mediaIDs = append(mediaIDs, mediaID)
		seqs = append(seqs, int64(c.Seq))
		texts = append(texts, c.Text)
	}

	_, err = s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnVarChar("media_id", mediaIDs),
		entity.NewColumnInt64("seq", seqs),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return nil, &core.IndexWriteError{Written: 0, Err: fmt.Errorf("milvus insert: %w", err)}
	}
	// Make the write visible before the call returns; chunks must be
	// retrievable once indexing reports success.
	if err := s.mc.Flush(ctx, s.coll, false); err != nil {
		return nil, &core.IndexWriteError{Written: len(chunks), Err: fmt.Errorf("milvus flush: %w", err)}
	}
	return chunkIDs, nil
}

func (s *MilvusVectorStore) Query(ctx context.Context, mediaID, question string, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = 3
	}
	qv, err := s.emb.Embed(ctx, question)
	if err != nil {
		return nil, &core.RetrievalError{Reason: "embed question", Err: err}
	}

	sp, _ := entity.NewIndexHNSWSearchParam(74)
	filter := ""
	if mediaID != "" {
		filter = fmt.Sprintf("media_id == %q", strings.ReplaceAll(mediaID, "\"", "\\\""))
	}
	res, err := s.mc.Search(ctx, s.coll, []string{}, filter,
		[]string{"chunk_id", "media_id", "seq", "text"},
		[]entity.Vector{entity.FloatVector(qv)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, &core.RetrievalError{Reason: "index unreachable", Err: err}
	}

	var hits []core.Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var h core.Hit
			if c, ok := cols["chunk_id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.ChunkID = data[i]
				}
			}
			if c, ok := cols["media_id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.MediaID = data[i]
				}
			}
			if c, ok := cols["seq"].(*entity.ColumnInt64); ok {
				if data := c.Data(); i < len(data) {
					h.Seq = int(data[i])
				}
			}
			if c, ok := cols["text"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.Text = data[i]
				}
			}
			h.Score = float64(r.Scores[i])
			hits = append(hits, h)
		}
	}
	if len(hits) == 0 {
		return nil, &core.RetrievalError{Reason: "no indexed content for this media"}
	}
	return hits, nil
}

func (s *MilvusVectorStore) DeleteMedia(ctx context.Context, mediaID string) (int, error) {
	expr := fmt.Sprintf("media_id == %q", strings.ReplaceAll(mediaID, "\"", "\\\""))

	rs, err := s.mc.Query(ctx, s.coll, []string{}, expr, []string{"chunk_id"})
	count := 0
	if err == nil && len(rs) > 0 {
		count = rs[0].Len()
	}

	if err := s.mc.Delete(ctx, s.coll, "", expr); err != nil {
		return 0, fmt.Errorf("milvus delete: %w", err)
	}
	return count, nil
}

func (s *MilvusVectorStore) Close(ctx context.Context) error {
	return s.mc.Close()
}
