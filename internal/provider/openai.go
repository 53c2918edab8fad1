package provider

import (
	"context"
	"net/http"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAICompatible speaks the chat completions API shared by OpenAI and Groq.
type OpenAICompatible struct {
	name     Name
	settings Settings
	http     *http.Client
}

// NewOpenAICompatible builds a chat completions client reporting itself as name.
func NewOpenAICompatible(name Name, s Settings, client *http.Client) *OpenAICompatible {
	return &OpenAICompatible{name: name, settings: s, http: client}
}

// Name reports the backend this client was built for, groq or openai.
func (c *OpenAICompatible) Name() Name { return c.name }

// Generate sends a chat completion request and returns the first choice.
func (c *OpenAICompatible) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.settings.Model
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	resp, err := postJSON(ctx, c.http, c.name, trimEndpoint(c.settings.Endpoint)+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.settings.APIKey},
		chatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			MaxTokens:   req.MaxTokens,
		})
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
