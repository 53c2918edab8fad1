// Package provider talks to the AI backends that turn a prompt into a commit
// message: a local Ollama daemon or the hosted Groq, Anthropic and OpenAI APIs.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Name identifies a provider in configuration and on the command line.
type Name string

const (
	Ollama    Name = "ollama"
	Groq      Name = "groq"
	Anthropic Name = "anthropic"
	OpenAI    Name = "openai"
)

// Names lists the recognised providers in the order they are documented.
func Names() []Name {
	return []Name{Ollama, Groq, Anthropic, OpenAI}
}

// Default describes how to reach a provider when the config says nothing.
type Default struct {
	Endpoint    string
	Model       string
	KeyEnv      string
	Description string
}

// Defaults holds the built-in endpoint, model and credential variable per provider.
var Defaults = map[Name]Default{
	Ollama: {
		Endpoint:    "http://localhost:11434",
		Model:       "qwen2.5-coder:1.5b",
		Description: "local inference",
	},
	Groq: {
		Endpoint:    "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		KeyEnv:      "GROQ_API_KEY",
		Description: "fast hosted inference with free tier",
	},
	Anthropic: {
		Endpoint:    "https://api.anthropic.com",
		Model:       "claude-3-5-haiku-latest",
		KeyEnv:      "ANTHROPIC_API_KEY",
		Description: "hosted inference via API key",
	},
	OpenAI: {
		Endpoint:    "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		KeyEnv:      "OPENAI_API_KEY",
		Description: "hosted inference via API key",
	},
}

// Valid reports whether n is a recognised provider.
func (n Name) Valid() bool {
	_, ok := Defaults[n]
	return ok
}

// NeedsKey reports whether the provider requires an API key.
func (n Name) NeedsKey() bool {
	return Defaults[n].KeyEnv != ""
}

// Request is a provider-neutral generation request.
type Request struct {
	// Model overrides the provider's configured model when set.
	Model       string
	System      string
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Provider generates text for a prompt.
type Provider interface {
	Name() Name
	Generate(ctx context.Context, req Request) (string, error)
}

// Settings configures a single provider instance.
type Settings struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

var (
	// ErrMissingCredentials is returned when a hosted provider has no API key.
	ErrMissingCredentials = errors.New("missing API key")
	// ErrUnknownProvider is returned for names outside Names().
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// New builds the provider called name, filling unset settings from Defaults.
func New(name Name, s Settings) (Provider, error) {
	def, ok := Defaults[name]
	if !ok {
		return nil, errors.WithHintf(errors.Wrapf(ErrUnknownProvider, "%q", string(name)),
			"recognised providers: %s", joinNames(Names()))
	}
	if s.Endpoint == "" {
		s.Endpoint = def.Endpoint
	}
	if s.Model == "" {
		s.Model = def.Model
	}
	if def.KeyEnv != "" && strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.WithHintf(errors.Wrapf(ErrMissingCredentials, "%s", name),
			"export %s=... or set providers.%s.api_key in ~/.gh-commit-ai.yml", def.KeyEnv, name)
	}

	client := newHTTPClient(s.Timeout)
	switch name {
	case Ollama:
		return NewOllama(s, client), nil
	case Anthropic:
		return NewAnthropic(s, client), nil
	default:
		return NewOpenAICompatible(name, s, client), nil
	}
}

func joinNames(names []Name) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		},
	}
}

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider Name
	Code     int
	Body     string
}

// Error includes the status code and a trimmed response body.
func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "…"
	}
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Code, body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Retryable reports whether err is transient: rate limits, server errors,
// transport failures and empty answers. Cancellation never is.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func trimEndpoint(endpoint string) string {
	return strings.TrimRight(endpoint, "/")
}

// postJSON sends in as JSON and returns the open response for 2xx answers.
// The caller closes the body.
func postJSON(ctx context.Context, client *http.Client, name Name, endpoint string, headers map[string]string, in any) (*http.Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build http request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Provider: name, Code: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
