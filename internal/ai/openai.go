package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DigiMedic/PillSee/internal/config"
	apperrors "github.com/DigiMedic/PillSee/pkg/errors"
	"github.com/DigiMedic/PillSee/pkg/metrics"
)

// Client wraps the hosted OpenAI endpoints the pipeline depends on:
// embeddings, chat completion and vision chat. Every call is synchronous
// and made at most once or twice per request; failures are surfaced to the
// caller, which degrades at its own boundary.
type Client struct {
	api     *openai.Client
	cfg     config.OpenAIConfig
	metrics *metrics.Metrics
}

func NewClient(cfg config.OpenAIConfig, m *metrics.Metrics) *Client {
	return &Client{
		api:     openai.NewClient(cfg.APIKey),
		cfg:     cfg,
		metrics: m,
	}
}

// Embed generates the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for a batch of texts in one call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Dimensions: c.cfg.EmbeddingDimensions,
	})
	c.observe("embedding", start, err)
	if err != nil {
		return nil, apperrors.NewExternalService("openai embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// Generate runs one chat completion. Temperature is fixed low for
// reproducible medical answers and the token budget is capped.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.TextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   800,
	})
	c.observe("generation", start, err)
	if err != nil {
		return "", apperrors.NewExternalService("openai completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// DescribeImage sends a data-URL image to the vision model with high detail
// for package text recognition.
func (c *Client) DescribeImage(ctx context.Context, system, instruction, imageURL string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: instruction},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	})
	c.observe("vision", start, err)
	if err != nil {
		return "", apperrors.NewExternalService("openai vision", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) observe(service string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.ExternalCalls.WithLabelValues(service, status).Inc()
	c.metrics.ExternalLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
