// Package api serves the Dialpad webhook and the recruiter dashboard API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"care-ats/internal/actionable"
	"care-ats/internal/logger"
	"care-ats/internal/processor"
	"care-ats/internal/sender"
	"care-ats/internal/store"
	"care-ats/internal/webhook"
)

// Pipeline processes one call event. *processor.Processor implements it.
type Pipeline interface {
	Process(ctx context.Context, ev webhook.Event) (processor.Result, error)
}

// Outbox queues outbound messages. *sender.Worker implements it.
type Outbox interface {
	Enqueue(msgs ...sender.Message) ([]sender.Message, error)
	Pause() error
	Resume() error
	Status() sender.Status
}

// Alerter pushes operator alerts.
type Alerter interface {
	Alert(ctx context.Context, card actionable.ActionCard) error
}

// Deps is everything the router needs.
type Deps struct {
	Store         *store.Store
	Pipeline      Pipeline
	Outbox        Outbox
	Alerter       Alerter
	WebhookSecret string
	JWTSecret     string
	CountryCode   string
	Log           *logger.Logger
}

// SetupRoutes builds the router. When JWTSecret is empty the /v1 routes are
// served without authentication.
func SetupRoutes(d Deps) *mux.Router {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	log = log.Component("api")

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware(log))

	wh := &WebhookHandler{pipeline: d.Pipeline, secret: d.WebhookSecret, countryCode: d.CountryCode, log: log}
	ch := &CandidatesHandler{store: d.Store, countryCode: d.CountryCode, log: log}
	lh := &LedgerHandler{store: d.Store, alerter: d.Alerter, log: log}
	mh := &MessagesHandler{outbox: d.Outbox}

	// preflight for every path; CORSMiddleware answers it
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.HandleFunc("/healthz", healthHandler(d.Store)).Methods(http.MethodGet)
	r.HandleFunc("/webhook/dialpad", wh.Dialpad).Methods(http.MethodPost)

	apiV1 := r.PathPrefix("/v1").Subrouter()
	if d.JWTSecret != "" {
		apiV1.Use(JWTAuthMiddleware(d.JWTSecret))
	} else {
		log.Warn("ADMIN_JWT_SECRET not set, /v1 is unauthenticated")
	}

	apiV1.HandleFunc("/candidates", ch.List).Methods(http.MethodGet)
	apiV1.HandleFunc("/candidates", ch.Create).Methods(http.MethodPost)
	apiV1.HandleFunc("/candidates/export", ch.Export).Methods(http.MethodGet)
	apiV1.HandleFunc("/candidates/import", ch.Import).Methods(http.MethodPost)
	apiV1.HandleFunc("/candidates/{id}", ch.Get).Methods(http.MethodGet)
	apiV1.HandleFunc("/candidates/{id}/status", ch.UpdateStatus).Methods(http.MethodPatch)
	apiV1.HandleFunc("/candidates/{id}/notes", ch.ListNotes).Methods(http.MethodGet)
	apiV1.HandleFunc("/candidates/{id}/notes", ch.AddNote).Methods(http.MethodPost)
	apiV1.HandleFunc("/candidates/{id}/calls", ch.ListCalls).Methods(http.MethodGet)

	apiV1.HandleFunc("/ledger", lh.List).Methods(http.MethodGet)
	apiV1.HandleFunc("/ledger/export", lh.Export).Methods(http.MethodGet)
	apiV1.HandleFunc("/ledger/{call_id}", lh.Get).Methods(http.MethodGet)
	apiV1.HandleFunc("/ledger/{call_id}", lh.Clear).Methods(http.MethodDelete)
	apiV1.HandleFunc("/stats", lh.Stats).Methods(http.MethodGet)

	apiV1.HandleFunc("/messages", mh.Enqueue).Methods(http.MethodPost)
	apiV1.HandleFunc("/messages/pause", mh.Pause).Methods(http.MethodPost)
	apiV1.HandleFunc("/messages/resume", mh.Resume).Methods(http.MethodPost)
	apiV1.HandleFunc("/messages/status", mh.Status).Methods(http.MethodGet)

	return r
}

func healthHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			writeJSON(w, map[string]string{"status": "unavailable", "error": err.Error()}, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}
