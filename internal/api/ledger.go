package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"care-ats/internal/actionable"
	"care-ats/internal/aggregator"
	"care-ats/internal/dataset"
	"care-ats/internal/logger"
	"care-ats/internal/store"
	"care-ats/internal/types"
)

type LedgerHandler struct {
	store   *store.Store
	alerter Alerter
	log     *logger.Logger

	mu        sync.Mutex
	lastAlert string
}

type statsResponse struct {
	Summary aggregator.Summary    `json:"summary"`
	Card    actionable.ActionCard `json:"card"`
}

func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !validLedgerStatus(status) {
		writeError(w, "invalid status", http.StatusBadRequest)
		return
	}
	limit := 100
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	entries, err := h.store.ListLedger(r.Context(), status, limit)
	if err != nil {
		h.log.WithError(err).Error("list ledger")
		writeError(w, "failed to list ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []types.LedgerEntry{}
	}
	writeJSON(w, entries, http.StatusOK)
}

func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetLedgerEntry(r.Context(), mux.Vars(r)["call_id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "ledger entry not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).Error("get ledger entry")
		writeError(w, "failed to load ledger entry", http.StatusInternalServerError)
		return
	}
	writeJSON(w, e, http.StatusOK)
}

// Clear removes a ledger entry so the next delivery of that call is
// processed again. It is the manual recovery path for stuck claims.
func (h *LedgerHandler) Clear(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["call_id"]
	if err := h.store.ClearLedgerEntry(r.Context(), callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "ledger entry not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).Error("clear ledger entry")
		writeError(w, "failed to clear ledger entry", http.StatusInternalServerError)
		return
	}
	h.log.WithField("call_id", callID).WithField("by", adminFrom(r.Context())).Info("ledger entry cleared")
	w.WriteHeader(http.StatusNoContent)
}

// Stats summarises the whole ledger and pushes an alert when the failure
// rate crosses the threshold. The same alert is not pushed twice in a row.
func (h *LedgerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListLedger(r.Context(), "", 0)
	if err != nil {
		h.log.WithError(err).Error("stats")
		writeError(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}
	s := aggregator.Summarize(entries)
	card := actionable.Generate(s)
	if card.Alert {
		h.pushAlert(r.Context(), card)
	}
	writeJSON(w, statsResponse{Summary: s, Card: card}, http.StatusOK)
}

func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListLedger(r.Context(), "", 0)
	if err != nil {
		h.log.WithError(err).Error("export ledger")
		writeError(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := dataset.ExportLedger(&buf, entries, aggregator.Summarize(entries)); err != nil {
		h.log.WithError(err).Error("export ledger")
		writeError(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}
	writeXLSX(w, "ledger.xlsx", buf.Bytes())
}

func (h *LedgerHandler) pushAlert(ctx context.Context, card actionable.ActionCard) {
	if h.alerter == nil {
		return
	}
	h.mu.Lock()
	if h.lastAlert == card.Insight {
		h.mu.Unlock()
		return
	}
	h.lastAlert = card.Insight
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.alerter.Alert(ctx, card); err != nil {
		h.log.WithError(err).Warn("alert not delivered")
	}
}

func validLedgerStatus(s string) bool {
	for _, v := range types.LedgerStatuses {
		if v == s {
			return true
		}
	}
	return false
}
