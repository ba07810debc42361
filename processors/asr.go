package processors

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"mediaqa/config"
	"mediaqa/core"
)

// ASRProvider is the transcription boundary: a local audio file in, the
// full transcript text out.
type ASRProvider interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WhisperASR transcribes through an OpenAI-compatible audio endpoint. The
// client is constructed once at startup and shared; the remote model load
// is the expensive part and must not happen per request.
type WhisperASR struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

func NewWhisperASR(cli *openai.Client, cfg *config.Config) WhisperASR {
	return WhisperASR{
		cli:     cli,
		model:   cfg.ASRModel,
		timeout: time.Duration(cfg.LLMTimeout) * time.Second * 2,
	}
}

func (w WhisperASR) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", &core.TranscriptionError{Reason: "speech model call failed", Err: err}
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &core.TranscriptionError{Reason: "transcript is empty", Err: core.ErrNoSpeech}
	}
	return text, nil
}

// MockASR returns a fixed transcript without touching any model. Used for
// offline runs and tests.
type MockASR struct {
	Text string
}

func (m MockASR) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return "", &core.TranscriptionError{Reason: "audio file unreadable", Err: err}
	}
	if m.Text == "" {
		return "Placeholder transcript for " + audioPath, nil
	}
	return m.Text, nil
}

// PickASRProvider selects the transcription backend from the ASR env var.
func PickASRProvider(cli *openai.Client, cfg *config.Config) ASRProvider {
	asr := strings.ToLower(strings.TrimSpace(os.Getenv("ASR")))

	if asr == "mock" {
		return MockASR{}
	}

	if !cfg.HasValidAPI() {
		config.PrintConfigInstructions()
		log.Printf("Warning: API configuration not found, using mock transcription")
		return MockASR{}
	}
	return NewWhisperASR(cli, cfg)
}
