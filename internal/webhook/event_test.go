package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-ats/internal/dialpad"
)

const flatPayload = `{
  "call_id": 6543210987654321,
  "state": "hangup",
  "direction": "Inbound",
  "external_number": "07700 900123",
  "date_started": 1735725600000,
  "duration": 184500,
  "recording_url": ["https://dialpad.example/r/1.mp3"]
}`

const nestedPayload = `{
  "call_id": "987",
  "event_type": "recording",
  "contact": {"phone": "+44 7700 900456"},
  "date_started": "2025-01-01T10:00:00Z",
  "recording_details": [{"id": 555, "recording_type": "callrecording", "url": ""}]
}`

func TestParse_FlatShape(t *testing.T) {
	ev, err := Parse([]byte(flatPayload), "44")
	require.NoError(t, err)

	assert.Equal(t, "6543210987654321", ev.CallID)
	assert.Equal(t, "hangup", ev.State)
	assert.Equal(t, "inbound", ev.Direction)
	assert.Equal(t, "+447700900123", ev.Phone)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), ev.StartedAt)
	assert.Equal(t, 184, ev.DurationSecs)
	assert.Equal(t, "https://dialpad.example/r/1.mp3", ev.Recording.URL)
	assert.Equal(t, KindWithRecording, Classify(ev))
}

func TestParse_NestedShape(t *testing.T) {
	ev, err := Parse([]byte(nestedPayload), "44")
	require.NoError(t, err)

	assert.Equal(t, "987", ev.CallID)
	assert.Equal(t, "recording", ev.State, "state falls back to event_type")
	assert.Equal(t, "+447700900456", ev.Phone)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), ev.StartedAt)
	assert.Equal(t, "555", ev.Recording.ID)
	assert.Equal(t, "callrecording", ev.Recording.Type)
	assert.Equal(t, KindWithRecording, Classify(ev))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Kind
	}{
		{name: "ringing", ev: Event{State: "ringing", Recording: rec("u")}, want: KindIgnorable},
		{name: "connected", ev: Event{State: "connected"}, want: KindIgnorable},
		{name: "voicemail", ev: Event{State: "voicemail", Recording: rec("u")}, want: KindIgnorable},
		{name: "empty state", ev: Event{}, want: KindIgnorable},
		{name: "hangup no recording", ev: Event{State: "hangup"}, want: KindHangupWithoutRecording},
		{name: "hangup with url", ev: Event{State: "hangup", Recording: rec("u")}, want: KindWithRecording},
		{name: "recording event", ev: Event{State: "recording", Recording: rec("u")}, want: KindWithRecording},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ev))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Event{CallID: "1", Phone: "+447700900123"}))
	assert.ErrorIs(t, Validate(Event{Phone: "+447700900123"}), ErrMissingIdentity)

	ev, err := Parse([]byte(`{"call_id":"1","state":"hangup","external_number":"12"}`), "44")
	require.NoError(t, err)
	assert.Empty(t, ev.Phone, "too short to be a phone number")
	assert.ErrorIs(t, Validate(ev), ErrMissingIdentity)
}

func TestDecode_PlainJSON(t *testing.T) {
	out, err := Decode([]byte("  "+nestedPayload+"\n"), "")
	require.NoError(t, err)
	assert.JSONEq(t, nestedPayload, string(out))

	_, err = Decode([]byte("not json"), "")
	assert.Error(t, err)
}

func TestDecode_SignedJWT(t *testing.T) {
	claims := jwt.MapClaims{
		"call_id":         int64(6543210987654321),
		"state":           "hangup",
		"external_number": "+447700900123",
		"recording_url":   "https://dialpad.example/r/2.mp3",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("hook-secret"))
	require.NoError(t, err)

	out, err := Decode([]byte(signed), "hook-secret")
	require.NoError(t, err)

	ev, err := Parse(out, "44")
	require.NoError(t, err)
	assert.Equal(t, "6543210987654321", ev.CallID, "large ids survive the claims round trip")
	assert.Equal(t, "https://dialpad.example/r/2.mp3", ev.Recording.URL)

	_, err = Decode([]byte(signed), "other-secret")
	assert.True(t, errors.Is(err, ErrBadSignature))

	_, err = Decode([]byte(flatPayload), "hook-secret")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestParseStarted(t *testing.T) {
	want := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, want, parseStarted([]byte(`1735725600000`)))
	assert.Equal(t, want, parseStarted([]byte(`1735725600`)))
	assert.Equal(t, want, parseStarted([]byte(`"1735725600000"`)))
	assert.Equal(t, want, parseStarted([]byte(`"2025-01-01T11:00:00+01:00"`)))
	assert.True(t, parseStarted([]byte(`"yesterday"`)).IsZero())
	assert.True(t, parseStarted(nil).IsZero())
}

func rec(url string) dialpad.Recording { return dialpad.Recording{URL: url} }
