package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mediaqa/core"
)

// MemoryVectorStore keeps the index in process memory and snapshots it to a
// JSON file under the data root so it survives restarts. Default backend;
// meant for development and small corpora.
type MemoryVectorStore struct {
	mu      sync.RWMutex
	emb     Embedder
	path    string
	entries []memEntry
}

type memEntry struct {
	ID      string    `json:"id"`
	MediaID string    `json:"media_id"`
	Seq     int       `json:"seq"`
	Text    string    `json:"text"`
	Vector  []float32 `json:"vector"`
}

func newMemoryVectorStore(emb Embedder) (*MemoryVectorStore, error) {
	path := filepath.Join(core.DataRoot(), "index.json")
	s := &MemoryVectorStore{emb: emb, path: path}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}
	return s, nil
}

func (s *MemoryVectorStore) Name() string { return "memory" }

func (s *MemoryVectorStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.entries)
}

// snapshot persists the full index. Caller must hold the write lock.
func (s *MemoryVectorStore) snapshot() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *MemoryVectorStore) Add(ctx context.Context, mediaID string, chunks []core.Chunk) ([]string, error) {
	vectors, err := embedChunks(ctx, s.emb, chunks)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		s.entries = append(s.entries, memEntry{ID: c.ID, MediaID: mediaID, Seq: c.Seq, Text: c.Text, Vector: vectors[i]})
		ids = append(ids, c.ID)
	}
	if err := s.snapshot(); err != nil {
		// Roll the in-memory state back so a failed call writes nothing.
		s.entries = s.entries[:len(s.entries)-len(chunks)]
		return nil, &core.IndexWriteError{Written: 0, Err: err}
	}
	return ids, nil
}

func (s *MemoryVectorStore) Query(ctx context.Context, mediaID, question string, topK int) ([]core.Hit, error) {
	qv, err := s.emb.Embed(ctx, question)
	if err != nil {
		return nil, &core.RetrievalError{Reason: "embed question", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]core.Hit, 0, len(s.entries))
	for _, e := range s.entries {
		if mediaID != "" && e.MediaID != mediaID {
			continue
		}
		scored = append(scored, core.Hit{
			ChunkID: e.ID,
			MediaID: e.MediaID,
			Seq:     e.Seq,
			Score:   cosine(qv, e.Vector),
			Text:    e.Text,
		})
	}
	if len(scored) == 0 {
		return nil, &core.RetrievalError{Reason: "no indexed content for this media"}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK <= 0 || topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (s *MemoryVectorStore) DeleteMedia(ctx context.Context, mediaID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.MediaID == mediaID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	if removed > 0 {
		if err := s.snapshot(); err != nil {
			return removed, fmt.Errorf("persist index after delete: %w", err)
		}
	}
	return removed, nil
}

func (s *MemoryVectorStore) Close(ctx context.Context) error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
