package processors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaqa/core"
)

func TestNormalizeRejectsEmptyPayload(t *testing.T) {
	asset := core.MediaAsset{Filename: "empty.mp3", Kind: core.KindAudio}

	_, err := NormalizeMedia(context.Background(), asset, t.TempDir(), time.Minute)
	if err == nil {
		t.Fatal("empty payload should be rejected")
	}
	var decodeErr *core.MediaDecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("want MediaDecodeError, got %T: %v", err, err)
	}
}

func TestNormalizeAudioPassthrough(t *testing.T) {
	data := []byte("fake mp3 payload")
	asset := core.MediaAsset{Filename: "talk.mp3", Kind: core.KindAudio, Data: data}
	jobDir := t.TempDir()

	path, err := NormalizeMedia(context.Background(), asset, jobDir, time.Minute)
	if err != nil {
		t.Fatalf("NormalizeMedia() failed: %v", err)
	}
	if filepath.Dir(path) != jobDir {
		t.Errorf("audio written outside the job dir: %s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read normalized audio: %v", err)
	}
	if string(got) != string(data) {
		t.Error("audio passthrough must write bytes unchanged")
	}
}

func TestNormalizeKeepsAudioExtension(t *testing.T) {
	asset := core.MediaAsset{Filename: "memo.m4a", Kind: core.KindAudio, Data: []byte("x")}

	path, err := NormalizeMedia(context.Background(), asset, t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("NormalizeMedia() failed: %v", err)
	}
	if filepath.Ext(path) != ".m4a" {
		t.Errorf("passthrough should keep the original extension, got %s", path)
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("first\nsecond\nthird\n"); got != "third" {
		t.Errorf("lastLine = %q, want %q", got, "third")
	}
	if got := lastLine(""); got != "" {
		t.Errorf("lastLine of empty input = %q", got)
	}
}
