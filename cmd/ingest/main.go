// Command ingest runs a single call through the same pipeline the webhook
// uses. It is the manual path for calls whose webhook never arrived.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"care-ats/internal/app"
	"care-ats/internal/config"
	"care-ats/internal/dialpad"
	"care-ats/internal/logger"
	"care-ats/internal/phone"
	"care-ats/internal/processor"
	"care-ats/internal/webhook"
)

func main() {
	var (
		configPath    = flag.String("config", os.Getenv("CONFIG_PATH"), "path to config YAML file")
		callID        = flag.String("call-id", "", "vendor call id; a manual-<uuid> id is generated when empty")
		phoneNumber   = flag.String("phone", "", "caller phone number")
		recordingURL  = flag.String("recording-url", "", "direct recording URL")
		recordingID   = flag.String("recording-id", "", "Dialpad recording id")
		recordingType = flag.String("recording-type", "", "Dialpad recording type (default admincallrecording)")
		direction     = flag.String("direction", "inbound", "call direction")
	)
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New()

	if *recordingURL == "" && *recordingID == "" {
		fmt.Fprintln(os.Stderr, "one of -recording-url or -recording-id is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	num := phone.Normalize(*phoneNumber, cfg.DefaultCountryCode)
	if num == "" {
		fmt.Fprintf(os.Stderr, "invalid -phone %q\n", *phoneNumber)
		os.Exit(2)
	}
	id := *callID
	if id == "" {
		id = "manual-" + uuid.New().String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	ev := webhook.Event{
		CallID:    id,
		State:     "recording",
		Phone:     num,
		Direction: *direction,
		StartedAt: time.Now().UTC(),
		Recording: dialpad.Recording{ID: *recordingID, Type: *recordingType, URL: *recordingURL},
	}
	res, err := a.Processor.Process(ctx, ev)
	a.Close()
	if err != nil {
		log.WithError(err).Fatal("pipeline failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(res)

	if res.Status == processor.StatusError {
		os.Exit(1)
	}
}
