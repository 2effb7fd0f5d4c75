package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"care-ats/internal/api"
	"care-ats/internal/app"
	"care-ats/internal/config"
	"care-ats/internal/logger"
	"care-ats/internal/sender"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.Info("starting service")

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer a.Close()

	worker := sender.NewWorker(a.Notifier, cfg.Sender.MinDelay, cfg.Sender.MaxDelay, log)
	worker.Start(ctx)
	go logSenderEvents(worker.Events(), log)

	handler := api.SetupRoutes(api.Deps{
		Store:         a.Store,
		Pipeline:      a.Processor,
		Outbox:        worker,
		Alerter:       a.Notifier,
		WebhookSecret: cfg.Dialpad.WebhookSecret,
		JWTSecret:     cfg.Admin.JWTSecret,
		CountryCode:   cfg.DefaultCountryCode,
		Log:           log,
	})

	// webhooks are answered after the pipeline finishes
	writeTimeout := 60 * time.Second
	if t := cfg.PipelineTimeout + 30*time.Second; t > writeTimeout {
		writeTimeout = t
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server terminated")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("forced shutdown")
	}
	worker.Stop()
	log.Info("server exited")
}

func logSenderEvents(events <-chan sender.Event, log *logger.Logger) {
	l := log.Component("sender")
	for ev := range events {
		entry := l.WithField("event", ev.Kind).WithField("queued", ev.Queued)
		if ev.MessageID != "" {
			entry = entry.WithField("message_id", ev.MessageID)
		}
		if ev.Error != "" {
			entry.WithField("error", ev.Error).Warn("message not sent")
			continue
		}
		entry.Info("sender event")
	}
}
