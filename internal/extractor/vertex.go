package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// VertexClient sends the call audio straight to Gemini on Vertex AI, so
// the transcription step is skipped for this provider.
type VertexClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewVertexClient(ctx context.Context, project, location, model string) (*VertexClient, error) {
	if project == "" {
		return nil, errors.New("vertex: project is required")
	}
	if location == "" {
		location = "europe-west2"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0)
	m.SetMaxOutputTokens(8192)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	return &VertexClient{client: client, model: m}, nil
}

func (v *VertexClient) AcceptsAudio() bool { return true }

func (v *VertexClient) Complete(ctx context.Context, prompt string, in Input) (string, error) {
	parts := []genai.Part{genai.Text(prompt)}
	if len(in.Audio) > 0 {
		mime := in.AudioMIME
		if mime == "" || !strings.HasPrefix(mime, "audio/") {
			mime = "audio/mpeg"
		}
		parts = append(parts, genai.Blob{MIMEType: mime, Data: in.Audio})
	}

	resp, err := v.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close closes the Vertex AI client
func (v *VertexClient) Close() error {
	return v.client.Close()
}
