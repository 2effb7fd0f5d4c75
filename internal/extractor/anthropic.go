package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
)

// AnthropicClient calls the Messages API.
type AnthropicClient struct {
	url        string
	apiKey     string
	model      string
	maxElapsed time.Duration
	hc         *http.Client
}

func NewAnthropicClient(url, apiKey, model string, timeout time.Duration) *AnthropicClient {
	if url == "" {
		url = defaultAnthropicURL
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &AnthropicClient{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		maxElapsed: timeout,
		hc:         &http.Client{Timeout: timeout},
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) AcceptsAudio() bool { return false }

func (c *AnthropicClient) Complete(ctx context.Context, prompt string, _ Input) (string, error) {
	body := anthropicRequest{
		Model:       c.model,
		MaxTokens:   2048,
		System:      systemPrompt,
		Temperature: 0,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := postJSON(ctx, c.hc, c.url, headers, body, c.maxElapsed)
	if err != nil {
		return "", err
	}

	var out anthropicResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("llm api error: %s", out.Error.Message)
	}

	var sb strings.Builder
	for _, part := range out.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty content in messages response")
	}
	return sb.String(), nil
}
