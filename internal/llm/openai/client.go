// Package openai implements triage.Provider for OpenAI-compatible chat
// completion APIs, including Groq.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/packassist/internal/triage"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

var errNoChoices = errors.New("no choices returned")

// Config selects the endpoint and model.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the endpoint; empty means api.openai.com.
	BaseURL    string
	HTTPClient *http.Client
}

// Client implements triage.Provider over a chat completion endpoint.
type Client struct {
	api   *goopenai.Client
	model string
}

func New(cfg Config) *Client {
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		c.HTTPClient = cfg.HTTPClient
	}
	return &Client{api: goopenai.NewClientWithConfig(c), model: cfg.Model}
}

// Send runs a single-turn chat completion.
func (c *Client) Send(ctx context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, toChatRequest(c.model, req))
	if err != nil {
		return nil, fmt.Errorf("chat completion %s: %w", req.Purpose, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion %s: %w", req.Purpose, errNoChoices)
	}
	return &triage.LLMResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: triage.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func toChatRequest(model string, req *triage.LLMRequest) goopenai.ChatCompletionRequest {
	var msgs []goopenai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	return goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
}
