package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/prompts"
)

// chatCompleter is the part of the OpenAI client the VLM service needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// VLMService generates meme descriptions with an OpenAI-compatible vision model.
type VLMService struct {
	client    chatCompleter
	model     string
	maxTokens int
}

// VLMConfig holds configuration for VLM service.
type VLMConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// DescribeRequest carries exactly one image source plus optional hints.
// When both ImageData and ImageURL are set the bytes are used.
type DescribeRequest struct {
	ImageData []byte
	MIMEType  string
	ImageURL  string
	Context   domain.MemeContext
}

// NewVLMService creates a new VLM service.
// Parameters:
//   - cfg: VLM configuration including model, API key and timeout.
//
// Returns:
//   - *VLMService: initialized VLM client wrapper.
func NewVLMService(cfg *VLMConfig) *VLMService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return newVLMService(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.MaxTokens)
}

func newVLMService(client chatCompleter, model string, maxTokens int) *VLMService {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &VLMService{client: client, model: model, maxTokens: maxTokens}
}

// GetModel returns the model name being used.
func (s *VLMService) GetModel() string {
	return s.model
}

// Describe returns the model's description of the image.
// A request without any image source fails with ErrImageSourceRequired.
// Every upstream failure is logged and reported as ErrNoDescription.
func (s *VLMService) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	imageURL, err := imageSource(req)
	if err != nil {
		return "", err
	}

	c := req.Context
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompts.VLMSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompts.DescribeUserPrompt(c.PopCulture, c.Characters, c.Notes),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			logger.CtxWarn(ctx, "VLM API error: status=%d type=%s: %s", apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message)
		} else {
			logger.CtxWarn(ctx, "VLM request failed: %v", err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrNoDescription, err)
	}
	if len(resp.Choices) == 0 {
		logger.CtxWarn(ctx, "VLM returned no choices (model=%s)", s.model)
		return "", fmt.Errorf("%w: no choices", domain.ErrNoDescription)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		logger.CtxWarn(ctx, "VLM returned empty content (finish_reason=%s)", resp.Choices[0].FinishReason)
		return "", fmt.Errorf("%w: empty content", domain.ErrNoDescription)
	}
	return text, nil
}

// imageSource returns a data URL for bytes, or the image URL.
func imageSource(req DescribeRequest) (string, error) {
	if len(req.ImageData) > 0 {
		mimeType := req.MIMEType
		if mimeType == "" {
			mimeType = http.DetectContentType(req.ImageData)
		}
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.ImageData), nil
	}
	if req.ImageURL != "" {
		return req.ImageURL, nil
	}
	return "", domain.ErrImageSourceRequired
}
