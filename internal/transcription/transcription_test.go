package transcription

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-ats/internal/config"
)

func TestClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tk", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		assert.Equal(t, "json", r.FormValue("response_format"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "recording.wav", hdr.Filename)
		b, _ := io.ReadAll(f)
		assert.Equal(t, []byte("RIFFdata"), b)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  I can start next Monday.  "}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tk", "", "", time.Second, nil)
	text, err := c.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "I can start next Monday.", text)
}

func TestClient_SingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tk", "", "", time.Second, nil)
	_, err := c.Transcribe(context.Background(), []byte("x"), "audio/mpeg")
	assert.ErrorContains(t, err, "status 503")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_EmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", "", time.Second, nil)
	_, err := c.Transcribe(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	_, err = c.Transcribe(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestNew_Mock(t *testing.T) {
	tr := New(config.TranscriptionConfig{Mock: true}, nil)
	assert.IsType(t, Mock{}, tr)

	text, err := tr.Transcribe(context.Background(), []byte("x"), "audio/mpeg")
	require.NoError(t, err)
	assert.Contains(t, text, "two weeks")

	tr = New(config.TranscriptionConfig{URL: "http://localhost"}, nil)
	assert.IsType(t, &Client{}, tr)
}

// flakyWriter fails its nth Write call and accepts every other one.
type flakyWriter struct {
	n, calls int
	buf      bytes.Buffer
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls == w.n {
		return 0, errors.New("disk full")
	}
	return w.buf.Write(p)
}

func TestWriteForm_FieldErrors(t *testing.T) {
	c := NewClient("http://unused", "", "whisper-1", "en", time.Second, nil)

	var ok bytes.Buffer
	formType, err := c.writeForm(&ok, []byte("ID3"), "audio/mpeg")
	require.NoError(t, err)
	assert.Contains(t, formType, "multipart/form-data")

	// writes: file header, audio, then the model field header
	w := &flakyWriter{n: 3}
	_, err = c.writeForm(w, []byte("ID3"), "audio/mpeg")
	assert.ErrorContains(t, err, "disk full")
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".mp3", extensionFor(""))
	assert.Equal(t, ".mp3", extensionFor("audio/mpeg"))
	assert.Equal(t, ".wav", extensionFor("audio/x-wav"))
	assert.Equal(t, ".m4a", extensionFor("audio/mp4"))
	assert.Equal(t, ".ogg", extensionFor("audio/ogg; codecs=opus"))
}
