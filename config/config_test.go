package config

import (
	"testing"
)

// reset clears the cached config between tests.
func reset() { globalConfig = nil }

func TestLoadConfigDefaults(t *testing.T) {
	reset()
	t.Cleanup(reset)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("default chunk size = %d, want 500", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 100 {
		t.Errorf("default chunk overlap = %d, want 100", cfg.ChunkOverlap)
	}
	if cfg.TopK != 3 {
		t.Errorf("default top_k = %d, want 3", cfg.TopK)
	}
	if cfg.ASRModel != "whisper-1" {
		t.Errorf("default asr model = %q", cfg.ASRModel)
	}
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("default embedding dim = %d, want 1536", cfg.EmbeddingDim)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	reset()
	t.Cleanup(reset)

	t.Setenv("API_KEY", "test-key")
	t.Setenv("CHAT_MODEL", "test-chat")
	t.Setenv("EMBEDDING_DIM", "768")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("api key override not applied: %q", cfg.APIKey)
	}
	if cfg.ChatModel != "test-chat" {
		t.Errorf("chat model override not applied: %q", cfg.ChatModel)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("embedding dim override not applied: %d", cfg.EmbeddingDim)
	}
	if !cfg.HasValidAPI() {
		t.Error("HasValidAPI() should be true once a key is set")
	}
}

func TestLoadConfigCaches(t *testing.T) {
	reset()
	t.Cleanup(reset)

	first, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	second, err := LoadConfig()
	if err != nil {
		t.Fatalf("second LoadConfig() failed: %v", err)
	}
	if first != second {
		t.Error("LoadConfig() should return the cached instance")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without an API key")
	}

	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed on a complete config: %v", err)
	}

	cfg.ChunkOverlap = cfg.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject overlap >= chunk size")
	}
}
