package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSONOutsideLocal(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	log := NewWithOutput(&buf).Component("processor")

	req := httptest.NewRequest("POST", "/webhook/dialpad", nil)
	req.Header.Set("X-Request-ID", "req-1")
	log.WithRequest(req).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "care-ats", line["service"])
	assert.Equal(t, "processor", line["component"])
	assert.Equal(t, "req-1", line["req_id"])
	assert.Equal(t, "/webhook/dialpad", line["path"])
}

func TestNewWithOutput_Level(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	log := NewWithOutput(&buf)
	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.WithError(errors.New("boom")).Warn("kept")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	a, b := RequestID(req), RequestID(req)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)

	req.Header.Set("X-Request-ID", "fixed")
	assert.Equal(t, "fixed", RequestID(req))
}
