package processors

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mediaqa/core"
)

// NormalizeMedia writes the uploaded payload into jobDir and returns the
// path of an audio file the transcription engine can consume. Video
// payloads go through ffmpeg to strip the video track; audio payloads are
// written through unchanged. The caller owns jobDir and its cleanup.
func NormalizeMedia(ctx context.Context, asset core.MediaAsset, jobDir string, timeout time.Duration) (string, error) {
	if len(asset.Data) == 0 {
		return "", &core.MediaDecodeError{Reason: "empty media payload"}
	}

	ext := strings.ToLower(filepath.Ext(asset.Filename))
	if ext == "" {
		if asset.Kind == core.KindVideo {
			ext = ".mp4"
		} else {
			ext = ".mp3"
		}
	}
	inputPath := filepath.Join(jobDir, "input"+ext)
	if err := os.WriteFile(inputPath, asset.Data, 0644); err != nil {
		return "", &core.MediaDecodeError{Reason: "write media file", Err: err}
	}

	if asset.Kind == core.KindAudio {
		return inputPath, nil
	}

	audioPath := filepath.Join(jobDir, "audio.wav")
	if err := extractAudio(ctx, inputPath, audioPath, timeout); err != nil {
		return "", err
	}
	return audioPath, nil
}

// extractAudio strips the video track with ffmpeg and resamples to mono
// 16 kHz WAV. The exit status and output file are both checked: a failed
// or empty extraction must never surface later as a confusing
// transcription failure.
func extractAudio(ctx context.Context, inputPath, audioOut string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-y", "-i", inputPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioOut}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &core.MediaDecodeError{Reason: "audio extraction timed out", Err: ctx.Err()}
		}
		return &core.MediaDecodeError{
			Reason: fmt.Sprintf("ffmpeg failed: %s", lastLine(stderr.String())),
			Err:    err,
		}
	}

	info, err := os.Stat(audioOut)
	if err != nil {
		return &core.MediaDecodeError{Reason: "ffmpeg produced no output", Err: err}
	}
	if info.Size() == 0 {
		return &core.MediaDecodeError{Reason: "ffmpeg produced an empty audio stream"}
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
