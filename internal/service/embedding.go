package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/timmy/memehub/internal/domain"
)

// EmbeddingProvider turns text into vectors of a fixed dimension.
type EmbeddingProvider interface {
	// Embed embeds stored content (descriptions, page text).
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	GetModel() string
	Dimensions() int
}

// EmbeddingConfig holds configuration for embedding service
type EmbeddingConfig struct {
	Provider   string // openai, jina
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbeddingProvider builds the provider named by cfg.Provider.
func NewEmbeddingProvider(cfg *EmbeddingConfig) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedding(cfg), nil
	case "jina":
		return NewJinaEmbedding(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func checkEmbedding(vec []float32, dims int) ([]float32, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrUpstream)
	}
	if dims > 0 && len(vec) != dims {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrUpstream, len(vec), dims)
	}
	return vec, nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// embeddingCreator is the part of the OpenAI client used for embeddings.
type embeddingCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedding embeds with the OpenAI embeddings API.
type OpenAIEmbedding struct {
	client     embeddingCreator
	model      string
	dimensions int
}

// NewOpenAIEmbedding creates an OpenAI (or compatible) embedding provider.
func NewOpenAIEmbedding(cfg *EmbeddingConfig) *OpenAIEmbedding {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}

	return &OpenAIEmbedding{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (e *OpenAIEmbedding) GetModel() string { return e.model }
func (e *OpenAIEmbedding) Dimensions() int  { return e.dimensions }

func (e *OpenAIEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embedding: %v", domain.ErrUpstream, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai embedding: no data", domain.ErrUpstream)
	}
	return checkEmbedding(resp.Data[0].Embedding, e.dimensions)
}

// EmbedQuery is Embed: ada-002 uses one space for documents and queries.
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.Embed(ctx, query)
}

// JinaEmbedding embeds with the Jina AI embeddings API.
type JinaEmbedding struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

type jinaRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Task       string   `json:"task,omitempty"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// NewJinaEmbedding creates a Jina embedding provider.
func NewJinaEmbedding(cfg *EmbeddingConfig) *JinaEmbedding {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1"
	}
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeoutOrDefault(cfg.Timeout))

	return &JinaEmbedding{
		client:     client,
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (e *JinaEmbedding) GetModel() string { return e.model }
func (e *JinaEmbedding) Dimensions() int  { return e.dimensions }

func (e *JinaEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, "retrieval.passage")
}

func (e *JinaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.embed(ctx, query, "retrieval.query")
}

func (e *JinaEmbedding) embed(ctx context.Context, text, task string) ([]float32, error) {
	var result jinaResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(jinaRequest{
			Model:      e.model,
			Input:      []string{text},
			Task:       task,
			Dimensions: e.dimensions,
		}).
		SetResult(&result).
		SetError(&result).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: jina embedding: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: jina embedding: HTTP %d: %s", domain.ErrUpstream, resp.StatusCode(), result.Detail)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: jina embedding: no data", domain.ErrUpstream)
	}
	return checkEmbedding(result.Data[0].Embedding, e.dimensions)
}
