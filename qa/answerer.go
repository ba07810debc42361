package qa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"mediaqa/config"
	"mediaqa/core"
	"mediaqa/storage"
)

// answerTemplate mirrors the retrieval contract: the model sees exactly the
// retrieved chunks and the literal question, nothing else.
const answerTemplate = `You are an intelligent assistant specialized in analyzing and understanding audio and video content.
Answer only using the information provided in the context below.
Do not guess or provide information outside the context. Be precise and concise.

Context:
%s

Question:
%s`

// ChatClient is the language-model boundary: prompt in, text out.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIChat calls an OpenAI-compatible chat endpoint once per question,
// synchronously, with a bounded timeout.
type OpenAIChat struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIChat(cli *openai.Client, cfg *config.Config) OpenAIChat {
	return OpenAIChat{
		cli:     cli,
		model:   cfg.ChatModel,
		timeout: time.Duration(cfg.LLMTimeout) * time.Second,
	}
}

func (c OpenAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
	}
	resp, err := c.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Answerer retrieves the most similar indexed chunks for a question and
// generates an answer grounded in them.
type Answerer struct {
	store storage.VectorStore
	chat  ChatClient
	topK  int
}

func NewAnswerer(store storage.VectorStore, chat ChatClient, cfg *config.Config) *Answerer {
	return &Answerer{store: store, chat: chat, topK: cfg.TopK}
}

// Answer runs the retrieval-augmented path once: embed the question,
// retrieve topK chunks scoped to mediaID (empty searches the whole corpus),
// build the prompt and call the model. Identical questions re-run the full
// path; answers are never cached.
func (a *Answerer) Answer(ctx context.Context, mediaID, question string, topK int) (*core.QueryResponse, error) {
	if topK <= 0 {
		topK = a.topK
	}

	hits, err := a.store.Query(ctx, mediaID, question, topK)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(question, hits)
	answer, err := a.chat.Complete(ctx, prompt)
	if err != nil && transient(ctx, err) {
		log.Printf("Warning: chat model call failed (%v), retrying once", err)
		answer, err = a.chat.Complete(ctx, prompt)
	}
	if err != nil {
		return nil, &core.GenerationError{Reason: "chat model call failed", Err: err}
	}
	if strings.TrimSpace(answer) == "" {
		return nil, &core.GenerationError{Reason: "model returned empty output"}
	}

	return &core.QueryResponse{
		MediaID:  mediaID,
		Question: question,
		Answer:   answer,
		Hits:     hits,
	}, nil
}

// BuildPrompt assembles the generation prompt: the fixed instruction, the
// retrieved chunk texts in rank order, and the literal question.
func BuildPrompt(question string, hits []core.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
	}
	return fmt.Sprintf(answerTemplate, strings.Join(parts, "\n\n"), question)
}

// transient reports whether a failed call is worth one retry: transport
// errors, rate limiting and server-side failures qualify. Caller
// cancellation and request-shaped errors (bad auth, malformed input) are
// not going to succeed a second time.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
