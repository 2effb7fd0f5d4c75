package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-ats/internal/config"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "TRANSCRIPT")

		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk-test", "gpt-test", 5*time.Second)
	out, err := c.Complete(context.Background(), BuildPrompt(refDate, "+447700900123", "hello"), Input{})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "5xx is retried")
}

func TestOpenAIClient_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "bad", "", 5*time.Second)
	_, err := c.Complete(context.Background(), "p", Input{})
	require.Error(t, err)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnauthorized, serr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestContentFromChoices(t *testing.T) {
	_, err := contentFromChoices([]byte(`{"choices":[]}`))
	assert.Error(t, err)

	_, err = contentFromChoices([]byte(`{"error":{"message":"quota"}}`))
	assert.ErrorContains(t, err, "quota")

	got, err := contentFromChoices([]byte(`{"choices":[{"message":{"content":"  hi  "}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, systemPrompt, req.System)
		assert.Equal(t, 2048, req.MaxTokens)

		w.Write([]byte(`{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(srv.URL, "ak-test", "claude-test", 5*time.Second)
	out, err := c.Complete(context.Background(), "p", Input{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestNewClient_Providers(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, config.ExtractionConfig{Mock: true, Provider: "anything"})
	require.NoError(t, err)
	assert.IsType(t, MockClient{}, c)

	c, err = NewClient(ctx, config.ExtractionConfig{Provider: config.ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ctx, config.ExtractionConfig{Provider: config.ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	c, err = NewClient(ctx, config.ExtractionConfig{Provider: config.ProviderOllama, OllamaURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)
	assert.False(t, c.AcceptsAudio())

	_, err = NewClient(ctx, config.ExtractionConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestOllamaClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-test", req["model"])
		assert.Equal(t, "json", req["format"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama-test","response":"{\"b\":2}","done":true}`))
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, "llama-test", 5*time.Second)
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), "p", Input{})
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, strings.TrimSpace(out))
}
