// Package app wires the store, external clients and the processor from
// config. The API server and the ingest CLI share it so both run the same
// pipeline.
package app

import (
	"context"
	"fmt"
	"io"

	"care-ats/internal/actionable"
	"care-ats/internal/config"
	"care-ats/internal/dialpad"
	"care-ats/internal/extractor"
	"care-ats/internal/logger"
	"care-ats/internal/notify"
	"care-ats/internal/processor"
	"care-ats/internal/sender"
	"care-ats/internal/store"
	"care-ats/internal/transcription"
)

// Notifier is the operator channel: outbound messages, alerts and call
// notifications.
type Notifier interface {
	sender.Messenger
	processor.Notifier
	Alert(ctx context.Context, card actionable.ActionCard) error
}

type App struct {
	DB        *store.DB
	Store     *store.Store
	Processor *processor.Processor
	Notifier  Notifier

	closers []io.Closer
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*store.DB, error) {
	db, err := store.Open(ctx, cfg.Driver, cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

// NewNotifier returns a Telegram notifier when a bot token is configured
// and a log-only one otherwise.
func NewNotifier(cfg config.TelegramConfig, log *logger.Logger) (Notifier, error) {
	if cfg.Token == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, notifications go to the log")
		return notify.NewLog(log), nil
	}
	tg, err := notify.NewTelegram(cfg.Token, cfg.ChatID, log)
	if err != nil {
		return nil, err
	}
	return tg, nil
}

// New builds everything the pipeline needs. Callers must Close the App.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db, Store: store.New(db), closers: []io.Closer{db}}

	a.Notifier, err = NewNotifier(cfg.Telegram, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	client, err := extractor.NewClient(ctx, cfg.Extraction)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init extraction client: %w", err)
	}
	if c, ok := client.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	ex, err := extractor.New(client, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := dialpad.NewClient(cfg.Dialpad.APIBase, cfg.Dialpad.APIKey, cfg.Dialpad.Timeout, log)
	tr := transcription.New(cfg.Transcription, log)

	a.Processor = processor.New(a.Store, fetcher, tr, ex, log,
		processor.WithNotifier(a.Notifier),
		processor.WithTimeout(cfg.PipelineTimeout),
	)

	log.WithField("db_driver", cfg.Database.Driver).
		WithField("llm_provider", cfg.Extraction.Provider).
		WithField("llm_mock", cfg.Extraction.Mock).
		WithField("transcribe_mock", cfg.Transcription.Mock).
		Info("pipeline ready")
	return a, nil
}

// Close releases clients and the database, last opened first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
