package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"care-ats/internal/config"
)

// NewClient builds the model client selected by cfg.Provider.
func NewClient(ctx context.Context, cfg config.ExtractionConfig) (Client, error) {
	if cfg.Mock {
		return MockClient{}, nil
	}
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case config.ProviderOllama:
		return NewOllamaClient(cfg.OllamaURL, cfg.Model, cfg.Timeout)
	case config.ProviderVertex:
		return NewVertexClient(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.Model)
	}
	return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
}

// MockClient returns a fixed screening analysis. Enabled with USE_MOCK_LLM
// for local runs without model credentials.
type MockClient struct{}

func (MockClient) AcceptsAudio() bool { return false }

func (MockClient) Complete(_ context.Context, _ string, in Input) (string, error) {
	callType := "recruitment_screening"
	if strings.Contains(strings.ToLower(in.Transcript), "wrong number") {
		callType = "other"
	}
	out := map[string]any{
		"candidate_name":      nil,
		"experience_summary":  "Mock analysis: two years of home care experience.",
		"roles":               []string{"home carer"},
		"qualifications":      []string{},
		"driver_status":       "yes",
		"dbs_status":          "Unknown",
		"right_to_work":       "yes",
		"training_status":     nil,
		"earliest_start_date": "two weeks",
		"preferred_hours":     "weekdays",
		"red_flags":           []string{},
		"green_flags":         []string{"drives"},
		"quality_rating":      3,
		"energy_score":        6,
		"follow_up_actions":   []string{"book interview"},
		"call_type":           callType,
		"call_outcome":        "mock",
		"summary":             "Mock summary generated without a model.",
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}
