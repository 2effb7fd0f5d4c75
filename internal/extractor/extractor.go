package extractor

import (
	"context"
	"fmt"
	"time"

	"care-ats/internal/logger"
	"care-ats/internal/types"
)

// Input is what one extraction needs. Audio is only read by providers that
// accept it.
type Input struct {
	Today      time.Time
	Phone      string
	Transcript string
	Audio      []byte
	AudioMIME  string
}

// Client sends a rendered prompt to a model and returns its raw text.
type Client interface {
	Complete(ctx context.Context, prompt string, in Input) (string, error)
	AcceptsAudio() bool
}

// Extractor renders the prompt, calls the model once and validates the
// response. There is no repair loop: invalid output fails the call.
type Extractor struct {
	client Client
	parser *Parser
	log    *logger.Logger
}

func New(client Client, log *logger.Logger) (*Extractor, error) {
	if log == nil {
		log = logger.Discard()
	}
	p, err := NewParser(log)
	if err != nil {
		return nil, err
	}
	return &Extractor{client: client, parser: p, log: log.Component("extractor")}, nil
}

// AcceptsAudio reports whether the underlying model takes raw audio, in
// which case transcription is skipped.
func (e *Extractor) AcceptsAudio() bool {
	return e.client.AcceptsAudio()
}

func (e *Extractor) Extract(ctx context.Context, in Input) (*types.Analysis, error) {
	if in.Today.IsZero() {
		in.Today = time.Now()
	}
	transcript := in.Transcript
	if e.client.AcceptsAudio() && len(in.Audio) > 0 {
		transcript = ""
	}
	if transcript == "" && len(in.Audio) == 0 {
		return nil, fmt.Errorf("extract: no transcript or audio")
	}

	prompt := BuildPrompt(in.Today, in.Phone, transcript)
	log := e.log.WithField("phone", in.Phone).WithField("prompt_len", len(prompt))
	log.Debug("sending extraction prompt")

	start := time.Now()
	raw, err := e.client.Complete(ctx, prompt, in)
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("raw_len", len(raw)).Info("model responded")

	a, err := e.parser.Parse(ctx, raw, in.Today)
	if err != nil {
		log.WithField("raw_preview", preview(raw, 300)).WithField("error", err.Error()).Warn("model output rejected")
		return nil, err
	}
	return a, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
