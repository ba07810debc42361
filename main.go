package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	openai "github.com/sashabaranov/go-openai"

	"mediaqa/config"
	"mediaqa/core"
	"mediaqa/processors"
	"mediaqa/qa"
	"mediaqa/server"
	"mediaqa/storage"
)

func main() {
	if err := os.MkdirAll(core.DataRoot(), 0755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !cfg.HasValidAPI() {
		config.PrintConfigInstructions()
		log.Printf("Warning: no API credential configured, running with mock transcription and local embeddings")
	}

	cli := openaiClient(cfg)
	embedder := storage.PickEmbedder(cli, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewVectorStore(ctx, cfg, embedder)
	if err != nil {
		log.Fatalf("failed to init vector store: %v", err)
	}
	log.Printf("Vector store initialized: %s", store.Name())

	asr := processors.PickASRProvider(cli, cfg)
	pipeline := processors.NewPipeline(asr, store, cfg)
	answerer := qa.NewAnswerer(store, qa.NewOpenAIChat(cli, cfg), cfg)

	mux := http.NewServeMux()
	server.New(pipeline, answerer, store).Routes(mux)

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}
	log.Printf("Server listening on %s", addr)
	if err := server.Serve(ctx, &http.Server{Addr: addr, Handler: mux}, store); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func openaiClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
