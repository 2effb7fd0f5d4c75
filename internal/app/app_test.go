package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-ats/internal/config"
	"care-ats/internal/dialpad"
	"care-ats/internal/logger"
	"care-ats/internal/notify"
	"care-ats/internal/processor"
	"care-ats/internal/types"
	"care-ats/internal/webhook"
)

func mockConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database = config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	}
	cfg.Transcription.Mock = true
	cfg.Extraction.Mock = true
	cfg.Telegram = config.TelegramConfig{}
	return cfg
}

func TestNew_RunsCallEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	cfg := mockConfig(t)
	cfg.Dialpad.APIBase = srv.URL
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	a, err := New(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &notify.Log{}, a.Notifier)

	res, err := a.Processor.Process(ctx, webhook.Event{
		CallID:    "e2e-1",
		State:     "hangup",
		Phone:     "+447700900123",
		StartedAt: time.Now(),
		Recording: dialpad.Recording{URL: srv.URL + "/rec.mp3"},
	})
	require.NoError(t, err)
	assert.Equal(t, processor.StatusOK, res.Status, res.Message)
	assert.True(t, res.NewCandidate)

	e, err := a.Store.GetLedgerEntry(ctx, "e2e-1")
	require.NoError(t, err)
	assert.Equal(t, types.LedgerProcessed, e.Status)

	c, err := a.Store.GetCandidateByPhone(ctx, "+447700900123")
	require.NoError(t, err)
	assert.Equal(t, []string{"home carer"}, c.Roles)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, c.EarliestStartDate)
}

func TestNew_BadDatabase(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Database.Driver = "mysql"
	_, err := New(context.Background(), cfg, logger.Discard())
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), mockConfig(t), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
