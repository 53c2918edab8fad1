package provider

import (
	"context"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// AnthropicClient calls the Messages API.
type AnthropicClient struct {
	settings Settings
	http     *http.Client
}

// NewAnthropic builds a Messages API client.
func NewAnthropic(s Settings, client *http.Client) *AnthropicClient {
	return &AnthropicClient{settings: s, http: client}
}

// Name reports Anthropic.
func (c *AnthropicClient) Name() Name { return Anthropic }

// Generate sends the prompt to the Messages API and returns the joined text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.settings.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	resp, err := postJSON(ctx, c.http, Anthropic, trimEndpoint(c.settings.Endpoint)+"/v1/messages",
		map[string]string{
			"x-api-key":         c.settings.APIKey,
			"anthropic-version": anthropicVersion,
		},
		anthropicRequest{
			Model:       model,
			MaxTokens:   maxTokens,
			System:      req.System,
			Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
			Temperature: req.Temperature,
		})
	if err != nil {
		return "", err
	}

	var out anthropicResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
