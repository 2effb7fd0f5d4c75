package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"care-ats/internal/dialpad"
	"care-ats/internal/phone"
)

var (
	ErrMissingIdentity = errors.New("missing call_id or phone")
	ErrBadSignature    = errors.New("webhook signature invalid")
)

// Kind is the dispatcher's classification of an event.
type Kind string

const (
	KindIgnorable              Kind = "ignorable"
	KindHangupWithoutRecording Kind = "hangup_without_recording"
	KindWithRecording          Kind = "with_recording"
)

// Event is a call-lifecycle event normalised from either payload shape.
type Event struct {
	CallID       string            `json:"call_id"`
	State        string            `json:"state"`
	Phone        string            `json:"phone"`
	Direction    string            `json:"direction,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	DurationSecs int               `json:"duration_secs"`
	Recording    dialpad.Recording `json:"recording"`
}

// HasRecording reports whether the event points at any audio.
func (e Event) HasRecording() bool {
	return e.Recording.ID != "" || e.Recording.URL != ""
}

// payload covers both shapes the vendor sends. The flat shape carries
// recording_url and external_number, the nested one recording_details and
// contact.phone.
type payload struct {
	CallID           json.RawMessage   `json:"call_id"`
	State            string            `json:"state"`
	EventType        string            `json:"event_type"`
	Direction        string            `json:"direction"`
	ExternalNumber   string            `json:"external_number"`
	Contact          *contact          `json:"contact"`
	DateStarted      json.RawMessage   `json:"date_started"`
	Duration         json.RawMessage   `json:"duration"`
	RecordingURL     json.RawMessage   `json:"recording_url"`
	RecordingDetails []recordingDetail `json:"recording_details"`
}

type contact struct {
	Phone string `json:"phone"`
}

type recordingDetail struct {
	ID            json.RawMessage `json:"id"`
	RecordingType string          `json:"recording_type"`
	URL           string          `json:"url"`
}

// Decode turns a request body into JSON. With a secret configured the body
// must be a compact HS256 JWT whose claims are the event.
func Decode(body []byte, secret string) ([]byte, error) {
	body = []byte(strings.TrimSpace(string(body)))
	if secret == "" {
		if !json.Valid(body) {
			return nil, errors.New("webhook body is not valid JSON")
		}
		return body, nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(string(body), claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithJSONNumber())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return json.Marshal(claims)
}

// Parse decodes a JSON event in either shape. The phone is normalised to
// E.164 using countryCode for national numbers.
func Parse(data []byte, countryCode string) (Event, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("decode webhook: %w", err)
	}

	ev := Event{
		CallID:    rawString(p.CallID),
		State:     strings.ToLower(strings.TrimSpace(p.State)),
		Direction: strings.ToLower(p.Direction),
	}
	if ev.State == "" {
		ev.State = strings.ToLower(strings.TrimSpace(p.EventType))
	}

	num := p.ExternalNumber
	if num == "" && p.Contact != nil {
		num = p.Contact.Phone
	}
	ev.Phone = phone.Normalize(num, countryCode)

	ev.StartedAt = parseStarted(p.DateStarted)
	if ms, ok := rawNumber(p.Duration); ok && ms > 0 {
		ev.DurationSecs = int(ms / 1000)
	}

	if len(p.RecordingDetails) > 0 {
		d := p.RecordingDetails[0]
		ev.Recording = dialpad.Recording{ID: rawString(d.ID), Type: d.RecordingType, URL: d.URL}
	}
	if ev.Recording.URL == "" {
		ev.Recording.URL = firstURL(p.RecordingURL)
	}

	return ev, nil
}

// Classify buckets an event by state and recording presence.
func Classify(ev Event) Kind {
	switch ev.State {
	case "hangup", "recording", "call_recording":
	default:
		return KindIgnorable
	}
	if !ev.HasRecording() {
		return KindHangupWithoutRecording
	}
	return KindWithRecording
}

// Validate checks the identity every non-ignorable event needs.
func Validate(ev Event) error {
	if ev.CallID == "" || ev.Phone == "" {
		return ErrMissingIdentity
	}
	return nil
}

// parseStarted accepts epoch millis, epoch seconds or RFC3339.
func parseStarted(raw json.RawMessage) time.Time {
	if n, ok := rawNumber(raw); ok && n > 0 {
		if n > 1e11 {
			return time.UnixMilli(int64(n)).UTC()
		}
		return time.Unix(int64(n), 0).UTC()
	}
	s := rawString(raw)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseStarted(json.RawMessage(strconv.FormatFloat(n, 'f', 0, 64)))
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	return n, true
}

// rawString renders a JSON string or number as text. Call IDs arrive as
// 64-bit integers, so numbers are kept verbatim rather than via float64.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, u := range list {
			if u != "" {
				return u
			}
		}
	}
	return ""
}
