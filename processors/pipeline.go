package processors

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"mediaqa/config"
	"mediaqa/core"
	"mediaqa/storage"
)

// Pipeline runs one upload through normalize -> transcribe -> chunk ->
// index. Dependencies are constructed once at startup and injected; nothing
// here holds per-request state.
type Pipeline struct {
	asr           ASRProvider
	store         storage.VectorStore
	chunkSize     int
	chunkOverlap  int
	ffmpegTimeout time.Duration
}

func NewPipeline(asr ASRProvider, store storage.VectorStore, cfg *config.Config) *Pipeline {
	return &Pipeline{
		asr:           asr,
		store:         store,
		chunkSize:     cfg.ChunkSize,
		chunkOverlap:  cfg.ChunkOverlap,
		ffmpegTimeout: time.Duration(cfg.FFmpegTimeout) * time.Second,
	}
}

// ProcessMedia runs the full pipeline for one asset. The response carries
// per-step status; on failure the error identifies the failing stage and
// the partial step list is still returned.
func (p *Pipeline) ProcessMedia(ctx context.Context, asset core.MediaAsset) (*core.ProcessResponse, error) {
	resp := &core.ProcessResponse{
		MediaID: asset.MediaID(),
		Steps:   make([]core.StepStatus, 0, 3),
	}

	jobDir := filepath.Join(core.DataRoot(), "jobs", resp.MediaID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return resp, &core.MediaDecodeError{Reason: "create job directory", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			log.Printf("Warning: cleanup of %s failed: %v", jobDir, err)
		}
	}()

	audioPath, err := NormalizeMedia(ctx, asset, jobDir, p.ffmpegTimeout)
	if err != nil {
		resp.Steps = append(resp.Steps, core.StepStatus{Name: "normalize", Status: "failed", Error: err.Error()})
		return resp, err
	}
	resp.Steps = append(resp.Steps, core.StepStatus{Name: "normalize", Status: "completed"})

	transcript, err := p.asr.Transcribe(ctx, audioPath)
	if err != nil {
		resp.Steps = append(resp.Steps, core.StepStatus{Name: "transcribe", Status: "failed", Error: err.Error()})
		return resp, err
	}
	resp.Transcript = transcript
	resp.Steps = append(resp.Steps, core.StepStatus{Name: "transcribe", Status: "completed"})

	chunks := ChunkTranscript(transcript, resp.MediaID, p.chunkSize, p.chunkOverlap)
	ids, err := p.store.Add(ctx, resp.MediaID, chunks)
	if err != nil {
		resp.Steps = append(resp.Steps, core.StepStatus{Name: "index", Status: "failed", Error: err.Error()})
		return resp, err
	}
	resp.ChunkIDs = ids
	resp.Steps = append(resp.Steps, core.StepStatus{Name: "index", Status: "completed"})
	resp.Message = fmt.Sprintf("indexed %d chunks for media %s", len(ids), resp.MediaID)

	log.Printf("Processed %s (%s, %d bytes): %d chunks", asset.Filename, asset.Kind, asset.Size(), len(ids))
	return resp, nil
}

// ChunkTranscript splits a transcript and wraps the pieces as chunks with
// fresh random ids. Re-indexing the same transcript produces new entries,
// never mutations of old ones.
func ChunkTranscript(transcript, mediaID string, size, overlap int) []core.Chunk {
	parts := core.SplitText(transcript, size, overlap)
	chunks := make([]core.Chunk, 0, len(parts))
	for i, text := range parts {
		chunks = append(chunks, core.Chunk{
			ID:      core.NewChunkID(),
			MediaID: mediaID,
			Seq:     i,
			Text:    text,
		})
	}
	return chunks
}
