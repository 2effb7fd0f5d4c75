package dialpad

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(base string) *Client {
	c := NewClient(base, "dp-key", 5*time.Second, nil)
	c.maxElapsed = 5 * time.Second
	return c
}

func TestFetchRecording_ByID(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer dp-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v2/recordingsharelink":
			assert.Equal(t, http.MethodPost, r.Method)
			var req shareLinkRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "rec-42", req.RecordingID)
			assert.Equal(t, "callrecording", req.RecordingType)
			assert.Equal(t, "company", req.Privacy)
			json.NewEncoder(w).Encode(shareLinkResponse{AccessLink: srv.URL + "/shared/abc?token=t"})
		case "/shared/abc":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("ID3audio"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL + "/api/v2")
	audio, err := c.FetchRecording(context.Background(), Recording{ID: "rec-42", Type: "callrecording"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio.Data)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
}

func TestFetchRecording_DirectURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("raw"))
	}))
	defer srv.Close()

	c := newTestClient("http://unused")
	audio, err := c.FetchRecording(context.Background(), Recording{URL: srv.URL + "/rec.mp3"})
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), audio.Data)
}

func TestFetchRecording_FollowsJSONAccessLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wrapped" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Write([]byte(`{"access_link":"` + srv.URL + `/audio"}`))
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	c := newTestClient("http://unused")
	audio, err := c.FetchRecording(context.Background(), Recording{URL: srv.URL + "/wrapped"})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", audio.ContentType)
}

func TestFetchRecording_Failures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>login</html>"))
		case "/empty":
			w.Header().Set("Content-Type", "audio/mpeg")
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()

	_, err := c.FetchRecording(ctx, Recording{URL: srv.URL + "/html"})
	assert.ErrorIs(t, err, ErrNotAudio)

	_, err = c.FetchRecording(ctx, Recording{URL: srv.URL + "/empty"})
	assert.ErrorIs(t, err, ErrEmptyAudio)

	atomic.StoreInt32(&hits, 0)
	_, err = c.FetchRecording(ctx, Recording{URL: srv.URL + "/gone?token=secret"})
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.Code)
	assert.NotContains(t, serr.Error(), "secret")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "4xx is not retried")

	_, err = c.FetchRecording(ctx, Recording{})
	assert.ErrorIs(t, err, ErrNoRecording)
}

func TestFetchRecording_TransportErrorIsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := newTestClient(base)
	c.maxElapsed = 200 * time.Millisecond
	_, err := c.FetchRecording(context.Background(), Recording{URL: base + "/rec.mp3?token=secret"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), base+"/rec.mp3")
}

func TestFetchRecording_TooLarge(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.maxBytes = 8
	_, err := c.FetchRecording(context.Background(), Recording{URL: srv.URL + "/big.mp3"})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "oversized body is not retried")

	c.maxBytes = 10
	audio, err := c.FetchRecording(context.Background(), Recording{URL: srv.URL + "/big.mp3"})
	require.NoError(t, err)
	assert.Len(t, audio.Data, 10)
}

func TestFetchRecording_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient("http://unused")
	audio, err := c.FetchRecording(context.Background(), Recording{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), audio.Data)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchRecording_ShareLinkFallsBackToURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recordingsharelink" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("direct"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	audio, err := c.FetchRecording(context.Background(), Recording{ID: "r1", URL: srv.URL + "/direct.mp3"})
	require.NoError(t, err)
	assert.Equal(t, []byte("direct"), audio.Data)
}
