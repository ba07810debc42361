package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// MediaKind tells the normalizer whether a payload needs audio extraction.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

var audioExts = map[string]struct{}{".mp3": {}, ".wav": {}, ".m4a": {}}
var videoExts = map[string]struct{}{".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}}

// KindFromContentType maps a MIME type to a media kind by its prefix.
func KindFromContentType(ct string) (MediaKind, bool) {
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio, true
	case strings.HasPrefix(ct, "video/"):
		return KindVideo, true
	}
	return "", false
}

// KindFromFilename maps a filename to a media kind via the extension allowlist.
func KindFromFilename(name string) (MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := audioExts[ext]; ok {
		return KindAudio, true
	}
	if _, ok := videoExts[ext]; ok {
		return KindVideo, true
	}
	return "", false
}

// SupportedExtensions lists the accepted upload extensions, audio first.
func SupportedExtensions() []string {
	return []string{".mp3", ".wav", ".m4a", ".mp4", ".mov", ".avi", ".mkv"}
}

// MediaAsset is one uploaded payload. It lives only for the duration of a
// single pipeline run and is never persisted.
type MediaAsset struct {
	Filename string
	Kind     MediaKind
	Data     []byte
}

func (a MediaAsset) Size() int { return len(a.Data) }

// MediaID derives a stable identifier for the upload from its name and
// content hash, used to scope index entries to one media item.
func (a MediaAsset) MediaID() string {
	name := strings.TrimSuffix(filepath.Base(a.Filename), filepath.Ext(a.Filename))
	name = strings.ToLower(name)
	sum := md5.Sum(a.Data)
	return fmt.Sprintf("%s_%s", name, hex.EncodeToString(sum[:])[:8])
}

// Chunk is the atomic retrieval unit: a bounded substring of one transcript.
// IDs are random, never content-derived, so duplicate text at different
// positions stays independently addressable.
type Chunk struct {
	ID      string `json:"id"`
	MediaID string `json:"media_id"`
	Seq     int    `json:"seq"`
	Text    string `json:"text"`
}

// Hit is one retrieved chunk with its similarity score.
type Hit struct {
	ChunkID string  `json:"chunk_id"`
	MediaID string  `json:"media_id"`
	Seq     int     `json:"seq"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

type StepStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "completed", "failed"
	Error  string `json:"error,omitempty"`
}

type ProcessResponse struct {
	MediaID    string       `json:"media_id"`
	Transcript string       `json:"transcript"`
	ChunkIDs   []string     `json:"chunk_ids"`
	Steps      []StepStatus `json:"steps"`
	Message    string       `json:"message,omitempty"`
}

type QueryRequest struct {
	MediaID  string `json:"media_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type QueryResponse struct {
	MediaID  string `json:"media_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Hits     []Hit  `json:"hits"`
}

type ResetRequest struct {
	MediaID string `json:"media_id"`
}

type ResetResponse struct {
	MediaID string `json:"media_id"`
	Removed int    `json:"removed"`
}
