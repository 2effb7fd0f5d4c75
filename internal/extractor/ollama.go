package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient runs extraction on a local model served by Ollama.
type OllamaClient struct {
	api     *api.Client
	model   string
	timeout time.Duration
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) (*OllamaClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if model == "" {
		model = "llama3.1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		api:     api.NewClient(u, &http.Client{Timeout: timeout}),
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *OllamaClient) AcceptsAudio() bool { return false }

func (c *OllamaClient) Complete(ctx context.Context, prompt string, _ Input) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:   c.model,
		System:  systemPrompt,
		Prompt:  prompt,
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": 0},
	}

	var sb strings.Builder
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		sb.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if sb.Len() == 0 {
		return "", errors.New("empty ollama response")
	}
	return sb.String(), nil
}
