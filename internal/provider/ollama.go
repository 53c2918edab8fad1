package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// OllamaRequest defines the payload sent to the Ollama generate API.
type OllamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// OllamaChunk mirrors one line of the streamed response.
type OllamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaClient streams completions from a local Ollama daemon.
type OllamaClient struct {
	settings Settings
	http     *http.Client
}

// NewOllama builds a ready-to-use Ollama client.
func NewOllama(s Settings, client *http.Client) *OllamaClient {
	return &OllamaClient{settings: s, http: client}
}

// Name reports Ollama.
func (c *OllamaClient) Name() Name { return Ollama }

// Generate sends a prompt to the model and returns the aggregated streamed response.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.settings.Model
	}

	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	resp, err := postJSON(ctx, c.http, Ollama, trimEndpoint(c.settings.Endpoint)+"/api/generate", nil, OllamaRequest{
		Model:   model,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  true,
		Options: options,
	})
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) && ctx.Err() == nil {
			return "", errors.WithHintf(err, "is Ollama running at %s? start it with `ollama serve` and pull the model with `ollama pull %s`", c.settings.Endpoint, model)
		}
		return "", err
	}
	defer resp.Body.Close()

	var out strings.Builder
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var chunk OllamaChunk
		if err := json.Unmarshal(sc.Bytes(), &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return "", errors.Newf("ollama: %s", chunk.Error)
		}
		out.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrap(err, "read ollama stream")
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
