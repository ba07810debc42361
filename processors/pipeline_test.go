package processors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaqa/config"
	"mediaqa/core"
)

// fakeStore records the chunks handed to it without embedding anything.
type fakeStore struct {
	added   map[string][]core.Chunk
	addErr  error
	queryFn func(mediaID, question string, topK int) ([]core.Hit, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{added: map[string][]core.Chunk{}}
}

func (f *fakeStore) Add(ctx context.Context, mediaID string, chunks []core.Chunk) ([]string, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added[mediaID] = append(f.added[mediaID], chunks...)
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (f *fakeStore) Query(ctx context.Context, mediaID, question string, topK int) ([]core.Hit, error) {
	if f.queryFn != nil {
		return f.queryFn(mediaID, question, topK)
	}
	return nil, &core.RetrievalError{Reason: "no indexed content for this media"}
}

func (f *fakeStore) DeleteMedia(ctx context.Context, mediaID string) (int, error) {
	n := len(f.added[mediaID])
	delete(f.added, mediaID)
	return n, nil
}

func (f *fakeStore) Name() string                    { return "fake" }
func (f *fakeStore) Close(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{ChunkSize: 500, ChunkOverlap: 100, TopK: 3, FFmpegTimeout: 60, LLMTimeout: 30}
}

func TestProcessMediaAudioEndToEnd(t *testing.T) {
	t.Setenv("DATA_ROOT", t.TempDir())

	transcript := "The quick brown fox jumps over the lazy dog."
	store := newFakeStore()
	p := NewPipeline(MockASR{Text: transcript}, store, testConfig())

	asset := core.MediaAsset{Filename: "talk.mp3", Kind: core.KindAudio, Data: []byte("fake audio")}
	resp, err := p.ProcessMedia(context.Background(), asset)
	if err != nil {
		t.Fatalf("ProcessMedia() failed: %v", err)
	}

	if resp.Transcript != transcript {
		t.Errorf("transcript = %q, want %q", resp.Transcript, transcript)
	}
	// Short transcript: exactly one chunk equal to the full text.
	if len(resp.ChunkIDs) != 1 {
		t.Fatalf("got %d chunks, want 1", len(resp.ChunkIDs))
	}
	stored := store.added[resp.MediaID]
	if len(stored) != 1 || stored[0].Text != transcript {
		t.Errorf("stored chunk = %+v, want full transcript", stored)
	}

	for i, name := range []string{"normalize", "transcribe", "index"} {
		if resp.Steps[i].Name != name || resp.Steps[i].Status != "completed" {
			t.Errorf("step %d = %+v, want %s completed", i, resp.Steps[i], name)
		}
	}
}

func TestProcessMediaCleansUpJobDir(t *testing.T) {
	dataRoot := t.TempDir()
	t.Setenv("DATA_ROOT", dataRoot)

	p := NewPipeline(MockASR{Text: "hello world"}, newFakeStore(), testConfig())
	asset := core.MediaAsset{Filename: "talk.wav", Kind: core.KindAudio, Data: []byte("x")}
	resp, err := p.ProcessMedia(context.Background(), asset)
	if err != nil {
		t.Fatalf("ProcessMedia() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dataRoot, "jobs", resp.MediaID)); !os.IsNotExist(err) {
		t.Errorf("job dir should be removed after the pipeline run (stat err: %v)", err)
	}
}

func TestProcessMediaEmptyPayloadFailsNormalize(t *testing.T) {
	t.Setenv("DATA_ROOT", t.TempDir())

	p := NewPipeline(MockASR{}, newFakeStore(), testConfig())
	resp, err := p.ProcessMedia(context.Background(), core.MediaAsset{Filename: "z.mp4", Kind: core.KindVideo})
	if err == nil {
		t.Fatal("zero-byte upload should fail")
	}
	var decodeErr *core.MediaDecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("want MediaDecodeError, got %T: %v", err, err)
	}
	if len(resp.Steps) != 1 || resp.Steps[0].Status != "failed" {
		t.Errorf("normalize step should be reported failed, got %+v", resp.Steps)
	}
}

func TestProcessMediaPropagatesIndexError(t *testing.T) {
	t.Setenv("DATA_ROOT", t.TempDir())

	store := newFakeStore()
	store.addErr = &core.IndexWriteError{Written: 0, Err: errors.New("dimension mismatch")}
	p := NewPipeline(MockASR{Text: "some transcript"}, store, testConfig())

	_, err := p.ProcessMedia(context.Background(), core.MediaAsset{Filename: "a.mp3", Kind: core.KindAudio, Data: []byte("x")})
	var idxErr *core.IndexWriteError
	if !errors.As(err, &idxErr) {
		t.Errorf("want IndexWriteError, got %T: %v", err, err)
	}
}

func TestChunkTranscript(t *testing.T) {
	long := strings.Repeat("All work and no play makes Jack a dull boy. ", 60)
	chunks := ChunkTranscript(long, "media-1", 500, 100)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	seen := map[string]struct{}{}
	for i, c := range chunks {
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d", i, c.Seq)
		}
		if c.MediaID != "media-1" {
			t.Errorf("chunk %d has media id %q", i, c.MediaID)
		}
		if _, dup := seen[c.ID]; dup {
			t.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	// Same transcript, fresh ids: re-indexing creates new entries.
	again := ChunkTranscript(long, "media-1", 500, 100)
	if again[0].ID == chunks[0].ID {
		t.Error("re-chunking must mint new ids")
	}
	if again[0].Text != chunks[0].Text {
		t.Error("re-chunking must keep identical boundaries")
	}
}
