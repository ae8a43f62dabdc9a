package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
)

// EmbeddingProvider turns a batch of texts into fixed-dimension vectors,
// per spec.md §4.H's provider-abstraction requirement.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ChatProvider synthesizes a free-text answer from a system prompt and
// assembled context messages.
type ChatProvider interface {
	Complete(ctx context.Context, systemPrompt string, messages []string) (string, error)
}

// RemoteEmbeddingProvider calls an OpenAI-style embeddings endpoint.
type RemoteEmbeddingProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Dim     int
	client  *http.Client
}

// NewRemoteEmbeddingProvider builds a provider against an OpenAI-compatible
// /embeddings endpoint, selected when EMBEDDING_PROVIDER=openai.
func NewRemoteEmbeddingProvider(baseURL, apiKey, model string, dim int) *RemoteEmbeddingProvider {
	return &RemoteEmbeddingProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *RemoteEmbeddingProvider) Dimension() int { return p.Dim }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *RemoteEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.APIKey == "" {
		return nil, apperrors.New(apperrors.Unavailable, "embedding provider has no credentials configured")
	}
	body, err := json.Marshal(embeddingRequest{Model: p.Model, Input: texts})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "marshal embedding request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Unavailable, "embedding provider request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, apperrors.New(apperrors.Unavailable, fmt.Sprintf("embedding provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.New(apperrors.Internal, fmt.Sprintf("embedding provider rejected request: %d", resp.StatusCode))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "decode embedding response", err)
	}
	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// LocalEmbeddingProvider calls a local embedding daemon over HTTP,
// selected when EMBEDDING_PROVIDER=local. It speaks the same request
// shape as RemoteEmbeddingProvider but needs no API key.
type LocalEmbeddingProvider struct {
	BaseURL string
	Dim     int
	client  *http.Client
}

// NewLocalEmbeddingProvider builds a provider against a local daemon.
func NewLocalEmbeddingProvider(baseURL string, dim int) *LocalEmbeddingProvider {
	return &LocalEmbeddingProvider{BaseURL: baseURL, Dim: dim, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *LocalEmbeddingProvider) Dimension() int { return p.Dim }

func (p *LocalEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: texts})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "marshal embedding request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Unavailable, "local embedding daemon unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apperrors.New(apperrors.Unavailable, fmt.Sprintf("local embedding daemon returned %d", resp.StatusCode))
	}
	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "decode embedding response", err)
	}
	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// RemoteChatProvider calls an OpenAI-style chat completions endpoint as
// the synthesis provider for ask_project_rag, model selected by
// CHAT_MODEL.
type RemoteChatProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewRemoteChatProvider builds the synthesis provider.
func NewRemoteChatProvider(baseURL, apiKey, model string) *RemoteChatProvider {
	return &RemoteChatProvider{BaseURL: baseURL, APIKey: apiKey, Model: model, client: &http.Client{Timeout: 60 * time.Second}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *RemoteChatProvider) Complete(ctx context.Context, systemPrompt string, messages []string) (string, error) {
	if p.APIKey == "" {
		return "", apperrors.New(apperrors.Unavailable, "chat provider has no credentials configured")
	}
	payload := chatRequest{Model: p.Model, Messages: []chatMessage{{Role: "system", Content: systemPrompt}}}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: m})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "marshal chat request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.Unavailable, "chat provider request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", apperrors.New(apperrors.Unavailable, fmt.Sprintf("chat provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return "", apperrors.New(apperrors.Internal, fmt.Sprintf("chat provider rejected request: %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "decode chat response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.New(apperrors.Internal, "chat provider returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
