package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"mediaqa/config"
	"mediaqa/core"
)

// PgVectorStore persists the index in PostgreSQL with the pgvector
// extension. One Add call runs inside a single transaction, so a failed
// indexing run writes nothing.
type PgVectorStore struct {
	pool *pgxpool.Pool
	emb  Embedder
	dim  int
}

func newPgVectorStore(ctx context.Context, cfg *config.Config, emb Embedder) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{pool: pool, emb: emb, dim: emb.Dim()}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) Name() string { return "pgvector" }

func (s *PgVectorStore) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	mediaQuery := `
		CREATE TABLE IF NOT EXISTS media (
			id SERIAL PRIMARY KEY,
			media_id VARCHAR(255) UNIQUE NOT NULL,
			filename VARCHAR(500),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.pool.Exec(ctx, mediaQuery); err != nil {
		return fmt.Errorf("create media table: %w", err)
	}

	chunksQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS media_chunks (
			id SERIAL PRIMARY KEY,
			chunk_id VARCHAR(64) UNIQUE NOT NULL,
			media_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, s.dim)
	if _, err := s.pool.Exec(ctx, chunksQuery); err != nil {
		return fmt.Errorf("create media_chunks table: %w", err)
	}

	indexQuery := `CREATE INDEX IF NOT EXISTS idx_media_chunks_media_id ON media_chunks (media_id);`
	if _, err := s.pool.Exec(ctx, indexQuery); err != nil {
		return fmt.Errorf("create media_id index: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Add(ctx context.Context, mediaID string, chunks []core.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := embedChunks(ctx, s.emb, chunks)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &core.IndexWriteError{Written: 0, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO media (media_id) VALUES ($1) ON CONFLICT (media_id) DO NOTHING`, mediaID); err != nil {
		return nil, &core.IndexWriteError{Written: 0, Err: fmt.Errorf("register media: %w", err)}
	}

	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO media_chunks (chunk_id, media_id, seq, text, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID, mediaID, c.Seq, c.Text, pgvector.NewVector(vectors[i]))
		if err != nil {
			return nil, &core.IndexWriteError{Written: 0, Err: fmt.Errorf("insert chunk %d: %w", c.Seq, err)}
		}
		ids = append(ids, c.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &core.IndexWriteError{Written: 0, Err: fmt.Errorf("commit: %w", err)}
	}
	return ids, nil
}

func (s *PgVectorStore) Query(ctx context.Context, mediaID, question string, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = 3
	}
	qv, err := s.emb.Embed(ctx, question)
	if err != nil {
		return nil, &core.RetrievalError{Reason: "embed question", Err: err}
	}
	vec := pgvector.NewVector(qv)

	// Cosine distance, matching the metric implied by the embedding space.
	var rows pgx.Rows
	if mediaID != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT chunk_id, media_id, seq, text, 1 - (embedding <=> $1) AS similarity
			FROM media_chunks
			WHERE media_id = $2
			ORDER BY embedding <=> $1
			LIMIT $3
		`, vec, mediaID, topK)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT chunk_id, media_id, seq, text, 1 - (embedding <=> $1) AS similarity
			FROM media_chunks
			ORDER BY embedding <=> $1
			LIMIT $2
		`, vec, topK)
	}
	if err != nil {
		return nil, &core.RetrievalError{Reason: "index unreachable", Err: err}
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var h core.Hit
		if err := rows.Scan(&h.ChunkID, &h.MediaID, &h.Seq, &h.Text, &h.Score); err != nil {
			return nil, &core.RetrievalError{Reason: "scan result row", Err: err}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.RetrievalError{Reason: "read result rows", Err: err}
	}
	if len(hits) == 0 {
		return nil, &core.RetrievalError{Reason: "no indexed content for this media"}
	}
	return hits, nil
}

func (s *PgVectorStore) DeleteMedia(ctx context.Context, mediaID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media_chunks WHERE media_id = $1`, mediaID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM media WHERE media_id = $1`, mediaID); err != nil {
		return int(tag.RowsAffected()), fmt.Errorf("delete media row: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgVectorStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
