package dialpad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"care-ats/internal/logger"
)

// maxRecordingBytes caps a single download. Screening calls rarely pass
// 20 minutes of mp3.
const maxRecordingBytes = 100 << 20

var (
	ErrNoRecording = errors.New("dialpad: recording has neither id nor url")
	ErrNotAudio    = errors.New("dialpad: response is not audio")
	ErrEmptyAudio  = errors.New("dialpad: empty recording")
	ErrTooLarge    = errors.New("dialpad: recording exceeds size limit")
)

// Recording describes where a call's audio lives. Webhooks carry either a
// direct URL or an ID that must be exchanged for a share link.
type Recording struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"recording_type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Audio is a downloaded recording.
type Audio struct {
	Data        []byte
	ContentType string
}

// StatusError is a non-2xx Dialpad response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dialpad: %s returned %d: %s", e.URL, e.Code, e.Body)
}

type Client struct {
	apiBase    string
	apiKey     string
	httpClient *http.Client
	maxElapsed time.Duration
	maxBytes   int64
	log        *logger.Logger
}

func NewClient(apiBase, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxElapsed: 20 * time.Second,
		maxBytes:   maxRecordingBytes,
		log:        log.Component("dialpad"),
	}
}

type shareLinkRequest struct {
	RecordingID   string `json:"recording_id"`
	RecordingType string `json:"recording_type"`
	Privacy       string `json:"privacy"`
}

type shareLinkResponse struct {
	AccessLink string `json:"access_link"`
}

// FetchRecording downloads the audio for rec. A recording ID is preferred
// over a direct URL because direct URLs from older payloads expire.
func (c *Client) FetchRecording(ctx context.Context, rec Recording) (*Audio, error) {
	log := c.log.WithField("recording_id", rec.ID)

	target := rec.URL
	if rec.ID != "" {
		link, err := c.shareLink(ctx, rec)
		if err != nil {
			if rec.URL == "" {
				return nil, err
			}
			log.WithField("error", err.Error()).Warn("share link failed, falling back to direct url")
		} else {
			target = link
		}
	}
	if target == "" {
		return nil, ErrNoRecording
	}

	audio, link, err := c.download(ctx, target)
	if err != nil {
		return nil, err
	}
	// some payload URLs answer with a JSON wrapper around the real link
	if link != "" {
		audio, _, err = c.download(ctx, link)
		if err != nil {
			return nil, err
		}
		if audio == nil {
			return nil, fmt.Errorf("%w: share link pointed at another link", ErrNotAudio)
		}
	}

	log.WithField("bytes", len(audio.Data)).WithField("content_type", audio.ContentType).Info("recording downloaded")
	return audio, nil
}

func (c *Client) shareLink(ctx context.Context, rec Recording) (string, error) {
	recType := rec.Type
	if recType == "" {
		recType = "admincallrecording"
	}
	payload, err := json.Marshal(shareLinkRequest{
		RecordingID:   rec.ID,
		RecordingType: recType,
		Privacy:       "company",
	})
	if err != nil {
		return "", err
	}

	body, _, err := c.do(ctx, http.MethodPost, c.apiBase+"/recordingsharelink", payload)
	if err != nil {
		return "", fmt.Errorf("recording share link: %w", err)
	}

	var out shareLinkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("recording share link: decode: %w", err)
	}
	if out.AccessLink == "" {
		return "", errors.New("recording share link: response has no access_link")
	}
	return out.AccessLink, nil
}

// download GETs target. It returns either audio or, when the body is a JSON
// document carrying access_link, that link.
func (c *Client) download(ctx context.Context, target string) (*Audio, string, error) {
	body, contentType, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case strings.HasPrefix(mediaType, "audio/"), mediaType == "application/octet-stream", mediaType == "video/mp4":
	case mediaType == "application/json":
		var link shareLinkResponse
		if err := json.Unmarshal(body, &link); err == nil && link.AccessLink != "" {
			return nil, link.AccessLink, nil
		}
		return nil, "", fmt.Errorf("%w: got %s", ErrNotAudio, contentType)
	default:
		return nil, "", fmt.Errorf("%w: got %q", ErrNotAudio, contentType)
	}

	if len(body) == 0 {
		return nil, "", ErrEmptyAudio
	}
	return &Audio{Data: body, ContentType: mediaType}, "", nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)
	op := func() error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return backoff.Permanent(requestError(method, target, err))
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return requestError(method, target, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
		if err != nil {
			return requestError(method, target, err)
		}
		if resp.StatusCode >= 300 {
			serr := &StatusError{Code: resp.StatusCode, URL: redact(target), Body: truncate(string(b), 200)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if int64(len(b)) > c.maxBytes {
			return backoff.Permanent(fmt.Errorf("%w: %s is over %d bytes", ErrTooLarge, redact(target), c.maxBytes))
		}
		body = b
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// requestError replaces net/http's *url.Error, whose text carries the full
// URL, with one naming only the redacted target.
func requestError(method, target string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return fmt.Errorf("dialpad: %s %s: %w", method, redact(target), err)
}

// redact drops the query string, which carries signed tokens on share links.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
