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

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, LiteLLM gateways).
type OpenAIClient struct {
	url        string
	apiKey     string
	model      string
	maxElapsed time.Duration
	hc         *http.Client
}

func NewOpenAIClient(url, apiKey, model string, timeout time.Duration) *OpenAIClient {
	if url == "" {
		url = defaultOpenAIURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIClient{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		maxElapsed: timeout,
		hc:         &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

func (c *OpenAIClient) AcceptsAudio() bool { return false }

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, _ Input) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	resp, err := postJSON(ctx, c.hc, c.url, map[string]string{"Authorization": "Bearer " + c.apiKey}, body, c.maxElapsed)
	if err != nil {
		return "", err
	}

	content, err := contentFromChoices(resp)
	if err != nil {
		return "", err
	}
	return content, nil
}

// contentFromChoices reads choices[0].message.content from an
// OpenAI-style response.
func contentFromChoices(body []byte) (string, error) {
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("llm api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices in chat response")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty content in chat response")
	}
	return content, nil
}
