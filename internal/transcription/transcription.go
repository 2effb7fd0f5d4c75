package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"care-ats/internal/config"
	"care-ats/internal/logger"
)

// ErrEmptyTranscript is returned when the service answers 200 with no text.
var ErrEmptyTranscript = errors.New("transcription returned no text")

// Transcriber turns call audio into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Client calls a Whisper-style /v1/audio/transcriptions endpoint. One
// request per call, bounded by the client timeout, never retried.
type Client struct {
	url        string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	log        *logger.Logger
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New returns the configured transcriber. USE_MOCK_TRANSCRIBE switches to a
// canned transcript for local runs.
func New(cfg config.TranscriptionConfig, log *logger.Logger) Transcriber {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Mock {
		return Mock{}
	}
	return NewClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.Language, cfg.Timeout, log)
}

func NewClient(url, apiKey, model, language string, timeout time.Duration, log *logger.Logger) *Client {
	if model == "" {
		model = "whisper-1"
	}
	if language == "" {
		language = "en"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Component("transcription"),
	}
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("transcribe: empty audio")
	}

	var b bytes.Buffer
	formType, err := c.writeForm(&b, audio, contentType)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", formType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcribe failed: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("json decode error: %v body=%s", err, truncate(string(body), 200))
	}
	if tr.Error != nil {
		return "", fmt.Errorf("transcribe failed: %s", tr.Error.Message)
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	c.log.WithField("audio_bytes", len(audio)).
		WithField("chars", len(text)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("transcribed recording")
	return text, nil
}

// Mock returns a fixed screening conversation.
type Mock struct{}

func (Mock) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("transcribe: empty audio")
	}
	return "MOCK TRANSCRIPT: Hi, I'm calling about the home carer job. I've got two years experience, " +
		"I drive and I could start in two weeks.", nil
}

// writeForm encodes the upload and returns its multipart content type.
func (c *Client) writeForm(dst io.Writer, audio []byte, contentType string) (string, error) {
	w := multipart.NewWriter(dst)
	fw, err := w.CreateFormFile("file", "recording"+extensionFor(contentType))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	for _, f := range [][2]string{
		{"model", c.model},
		{"language", c.language},
		{"response_format", "json"},
	} {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return w.FormDataContentType(), nil
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return ".m4a"
	case strings.Contains(ct, "webm"):
		return ".webm"
	}
	return ".mp3"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
