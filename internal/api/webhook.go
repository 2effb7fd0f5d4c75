package api

import (
	"io"
	"net/http"

	"care-ats/internal/logger"
	"care-ats/internal/processor"
	"care-ats/internal/webhook"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	pipeline    Pipeline
	secret      string
	countryCode string
	log         *logger.Logger
}

// Dialpad handles call-lifecycle webhooks. Pipeline outcomes, failures
// included, are answered with 200 so the vendor does not redeliver; only an
// undecodable body (400) or an infrastructure error (500) is not.
func (h *WebhookHandler) Dialpad(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "dialpad_webhook")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	data, err := webhook.Decode(body, h.secret)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("webhook rejected")
		writeError(w, "invalid webhook body", http.StatusBadRequest)
		return
	}
	ev, err := webhook.Parse(data, h.countryCode)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("webhook rejected")
		writeError(w, "invalid webhook body", http.StatusBadRequest)
		return
	}

	res, err := h.pipeline.Process(r.Context(), ev)
	if err != nil {
		reqLog.WithField("call_id", ev.CallID).WithField("error", err.Error()).Error("pipeline failed")
		writeJSON(w, processor.Result{Status: processor.StatusError, CallID: ev.CallID, Message: "internal error"}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, res, http.StatusOK)
}
